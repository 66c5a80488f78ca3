// Package sms delivers text messages through Amazon SNS.
package sms

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/pkg/awssns"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

// maxBodyLen keeps messages within a few SMS segments.
const maxBodyLen = 480

// Sender is the SNS SMS adapter.
type Sender struct {
	client   awssns.Publisher
	senderID string
}

// New builds a sender over client. senderID is optional.
func New(client awssns.Publisher, senderID string) (*Sender, error) {
	if client == nil {
		return nil, errors.New("sns client required")
	}
	return &Sender{client: client, senderID: senderID}, nil
}

func (s *Sender) Name() string { return "sns-sms" }

func (s *Sender) Send(ctx context.Context, recipient dispatch.Recipient, content dispatch.Content) dispatch.SendResult {
	if !strings.HasPrefix(recipient.Address, "+") {
		return dispatch.Failed(pkgerrors.New(pkgerrors.CodeValidation, "phone number must be in E.164 format"))
	}

	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(recipient.Address),
		Message:           aws.String(body(content)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return dispatch.Failed(awssns.Classify(err))
	}
	return dispatch.SendResult{Success: true, ProviderMessageID: aws.ToString(out.MessageId)}
}

func body(content dispatch.Content) string {
	text := strings.TrimSpace(content.Text)
	if text == "" {
		text = content.Subject
	} else if content.Subject != "" && !strings.HasPrefix(text, content.Subject) {
		text = content.Subject + ": " + text
	}
	if content.Link != "" {
		text += " " + content.Link
	}
	if runes := []rune(text); len(runes) > maxBodyLen {
		text = string(runes[:maxBodyLen-1]) + "…"
	}
	return text
}
