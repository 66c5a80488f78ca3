package sms

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

type fakePublisher struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-123")}, nil
}

func TestSendPublishesToPhoneNumber(t *testing.T) {
	pub := &fakePublisher{}
	s, err := New(pub, "FLIGHTS")
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	result := s.Send(context.Background(), dispatch.Recipient{Address: "+34600111222"}, dispatch.Content{
		Subject: "Gate change",
		Text:    "Now boarding at B12",
		Link:    "https://example.com/t/1",
	})
	if !result.Success || result.ProviderMessageID != "sns-123" {
		t.Fatalf("unexpected result %+v", result)
	}
	if aws.ToString(pub.input.PhoneNumber) != "+34600111222" {
		t.Fatalf("unexpected phone %q", aws.ToString(pub.input.PhoneNumber))
	}
	if got := aws.ToString(pub.input.Message); got != "Gate change: Now boarding at B12 https://example.com/t/1" {
		t.Fatalf("unexpected body %q", got)
	}
	if aws.ToString(pub.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue) != "FLIGHTS" {
		t.Fatal("expected sender id attribute")
	}
}

func TestSendClassifiesSNSErrors(t *testing.T) {
	cases := map[string]pkgerrors.Code{
		"Throttling":       pkgerrors.CodeRateLimit,
		"OptedOut":         pkgerrors.CodeValidation,
		"InternalError":    pkgerrors.CodeDependency,
		"InvalidParameter": pkgerrors.CodeValidation,
	}
	for code, want := range cases {
		pub := &fakePublisher{err: &smithy.GenericAPIError{Code: code, Message: "nope"}}
		s, _ := New(pub, "")
		result := s.Send(context.Background(), dispatch.Recipient{Address: "+15550100"}, dispatch.Content{Text: "hi"})
		if result.Success || result.Code != want {
			t.Fatalf("%s: expected %s, got %+v", code, want, result)
		}
	}
}

func TestSendRejectsNonE164(t *testing.T) {
	s, _ := New(&fakePublisher{}, "")
	result := s.Send(context.Background(), dispatch.Recipient{Address: "600111222"}, dispatch.Content{Text: "hi"})
	if result.Code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation failure, got %+v", result)
	}
}
