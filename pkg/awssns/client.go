// Package awssns builds the SNS client shared by the SMS and push senders.
package awssns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"

	"github.com/angelmondragon/flightnotify/pkg/config"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

// Publisher is the slice of the SNS API the senders call.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewClient loads AWS configuration for the region. Static keys and an
// endpoint override are honoured when set, which is how LocalStack is reached.
func NewClient(ctx context.Context, cfg config.AWSConfig) (*sns.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := []func(*sns.Options){}
	if cfg.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		})
	}

	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

var (
	throttlingCodes = map[string]struct{}{
		"Throttling":             {},
		"ThrottlingException":    {},
		"ThrottledException":     {},
		"KMSThrottlingException": {},
	}
	// retrying these cannot succeed until someone fixes the address or topic
	permanentCodes = map[string]struct{}{
		"InvalidParameter":            {},
		"InvalidParameterValue":       {},
		"EndpointDisabled":            {},
		"NotFound":                    {},
		"OptedOut":                    {},
		"PlatformApplicationDisabled": {},
	}
)

// Classify maps an SNS failure onto the delivery error codes.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := throttlingCodes[code]; ok {
			return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "sns throttled")
		}
		if _, ok := permanentCodes[code]; ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "sns rejected message: "+code)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sns publish failed")
}
