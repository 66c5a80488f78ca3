package contacts

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

// Input is the set of addresses supplied for a user. Blank values clear the
// corresponding channel.
type Input struct {
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,e164"`
	PushEndpoint string `json:"push_endpoint" validate:"omitempty,startswith=arn:"`
}

// Service resolves recipient addresses and maintains the directory.
type Service interface {
	Put(ctx context.Context, userID string, input Input) (*models.UserContact, error)
	Get(ctx context.Context, userID string) (*models.UserContact, error)
	// Address returns the destination for channel. In-app delivery needs no
	// address and resolves to the user id itself.
	Address(ctx context.Context, userID string, channel enums.Channel) (string, error)
}

type service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService wires the contacts service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "contacts repository required")
	}
	return &service{repo: repo, validate: validator.New()}, nil
}

func (s *service) Put(ctx context.Context, userID string, input Input) (*models.UserContact, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.PushEndpoint = strings.TrimSpace(input.PushEndpoint)
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contact")
	}

	contact := &models.UserContact{
		UserID:       userID,
		Email:        optional(input.Email),
		Phone:        optional(input.Phone),
		PushEndpoint: optional(input.PushEndpoint),
	}
	if err := s.repo.Upsert(ctx, contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store contact")
	}
	return contact, nil
}

func (s *service) Get(ctx context.Context, userID string) (*models.UserContact, error) {
	contact, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contact")
	}
	if contact == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
	}
	return contact, nil
}

func (s *service) Address(ctx context.Context, userID string, channel enums.Channel) (string, error) {
	if channel == enums.ChannelInApp {
		return userID, nil
	}
	contact, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contact")
	}

	var address *string
	if contact != nil {
		switch channel {
		case enums.ChannelEmail:
			address = contact.Email
		case enums.ChannelSMS:
			address = contact.Phone
		case enums.ChannelPush:
			address = contact.PushEndpoint
		}
	}
	if address == nil || *address == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no "+string(channel)+" address on file").
			WithDetails(map[string]any{"user_id": userID, "channel": string(channel)})
	}
	return *address, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
