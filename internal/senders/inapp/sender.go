// Package inapp delivers notifications into the user's in-app inbox.
package inapp

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

type inboxWriter interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
}

// Sender writes inbox rows. A notification already in the inbox counts as
// delivered.
type Sender struct {
	inbox inboxWriter
}

// New builds a sender over the inbox repository.
func New(inbox inboxWriter) (*Sender, error) {
	if inbox == nil {
		return nil, errors.New("inbox repository required")
	}
	return &Sender{inbox: inbox}, nil
}

func (s *Sender) Name() string { return "inbox" }

func (s *Sender) Send(ctx context.Context, recipient dispatch.Recipient, content dispatch.Content) dispatch.SendResult {
	row := &models.Notification{
		ID:             uuid.New(),
		UserID:         recipient.UserID,
		NotificationID: recipient.NotificationID,
		Type:           recipient.Type,
		Title:          content.Subject,
		Message:        content.Text,
	}
	if content.Link != "" {
		link := content.Link
		row.Link = &link
	}

	if _, err := s.inbox.Create(ctx, row); err != nil {
		return dispatch.Failed(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write inbox row"))
	}
	return dispatch.SendResult{Success: true, ProviderMessageID: row.ID.String()}
}
