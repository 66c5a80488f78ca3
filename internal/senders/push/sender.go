// Package push delivers mobile push notifications to SNS platform endpoints.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/pkg/awssns"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

// Sender is the SNS mobile push adapter.
type Sender struct {
	client awssns.Publisher
}

// New builds a sender over client.
func New(client awssns.Publisher) (*Sender, error) {
	if client == nil {
		return nil, errors.New("sns client required")
	}
	return &Sender{client: client}, nil
}

func (s *Sender) Name() string { return "sns-push" }

func (s *Sender) Send(ctx context.Context, recipient dispatch.Recipient, content dispatch.Content) dispatch.SendResult {
	if !strings.HasPrefix(recipient.Address, "arn:") {
		return dispatch.Failed(pkgerrors.New(pkgerrors.CodeValidation, "push endpoint must be an SNS endpoint ARN"))
	}

	message, err := platformMessage(recipient, content)
	if err != nil {
		return dispatch.Failed(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode push message"))
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(recipient.Address),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return dispatch.Failed(awssns.Classify(err))
	}
	return dispatch.SendResult{Success: true, ProviderMessageID: aws.ToString(out.MessageId)}
}

// platformMessage renders the per-platform JSON envelope SNS expects when
// MessageStructure is json. Each platform value is itself a JSON string.
func platformMessage(recipient dispatch.Recipient, content dispatch.Content) (string, error) {
	data := map[string]string{
		"notification_id": recipient.NotificationID,
		"type":            string(recipient.Type),
	}
	if content.Link != "" {
		data["link"] = content.Link
	}

	apns, err := json.Marshal(map[string]any{
		"aps": map[string]any{
			"alert": map[string]string{"title": content.Subject, "body": content.Text},
			"sound": "default",
		},
		"data": data,
	})
	if err != nil {
		return "", err
	}
	gcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{"title": content.Subject, "body": content.Text},
		"data":         data,
	})
	if err != nil {
		return "", err
	}

	envelope, err := json.Marshal(map[string]string{
		"default":      content.Text,
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
		"GCM":          string(gcm),
	})
	if err != nil {
		return "", err
	}
	return string(envelope), nil
}
