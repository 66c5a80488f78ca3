package dispatch

import (
	"context"

	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

// Recipient identifies who a notification goes to on one channel.
type Recipient struct {
	UserID         string
	Address        string
	NotificationID string
	Type           enums.NotificationType
}

// Content is the rendered notification.
type Content struct {
	Subject string
	HTML    string
	Text    string
	Link    string
}

// SendResult is what a provider adapter reports. Senders never return errors
// or panic on purpose; a failure is a result with Success false and a Code
// that classifies it.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Error             string
	Code              pkgerrors.Code
}

// Failed builds a failed result from err, keeping its code when it has one.
func Failed(err error) SendResult {
	if err == nil {
		return SendResult{Error: "send failed", Code: pkgerrors.CodeDependency}
	}
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	return SendResult{Error: err.Error(), Code: code}
}

// Sender delivers content over one channel.
type Sender interface {
	// Name identifies the provider in the audit log.
	Name() string
	Send(ctx context.Context, recipient Recipient, content Content) SendResult
}
