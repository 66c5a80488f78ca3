// Package templates manages versioned notification templates and renders them
// against typed job payloads.
package templates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

const versionConstraint = "uq_notification_templates_version"

// RegisterInput is a new template version.
type RegisterInput struct {
	Type     enums.NotificationType
	Channel  enums.Channel
	Subject  string
	BodyHTML string
	BodyText string
	Active   bool
}

// Service registers templates and resolves the content for a payload.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.NotificationTemplate, error)
	List(ctx context.Context, filter ListFilter) ([]models.NotificationTemplate, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// Resolve renders the highest active version for the payload's type and
	// channel, or fallback content when none exists.
	Resolve(ctx context.Context, channel enums.Channel, payload payloads.Payload) (Rendered, error)
}

type service struct {
	repo     Repository
	registry *payloads.Registry
	logg     *logger.Logger
}

// ServiceParams wires the template service.
type ServiceParams struct {
	Repo     Repository
	Registry *payloads.Registry
	Logger   *logger.Logger
}

// NewService validates params and returns a Service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "template repository required")
	}
	registry := params.Registry
	if registry == nil {
		registry = payloads.Default()
	}
	return &service{repo: params.Repo, registry: registry, logg: params.Logger}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.NotificationTemplate, error) {
	notificationType, err := enums.ParseNotificationType(string(input.Type))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification type")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid channel")
	}
	if strings.TrimSpace(input.BodyText) == "" && strings.TrimSpace(input.BodyHTML) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template body required")
	}

	if known, ok := s.registry.FieldNames(notificationType); ok {
		unknown := unknownTokens(Tokens(input.Subject, input.BodyHTML, input.BodyText), known)
		if len(unknown) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "template references unknown fields").
				WithDetails(map[string]any{"unknown_fields": unknown, "allowed_fields": known})
		}
	}

	tpl := &models.NotificationTemplate{
		Type:     notificationType,
		Channel:  input.Channel,
		Active:   input.Active,
		Subject:  input.Subject,
		BodyHTML: input.BodyHTML,
		BodyText: input.BodyText,
	}
	if err := s.repo.CreateVersion(ctx, tpl); err != nil {
		if db.IsUniqueViolation(err, versionConstraint) || db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "template version registered concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store template")
	}
	return tpl, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.NotificationTemplate, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list templates")
	}
	return rows, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	found, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update template")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "template not found")
	}
	return nil
}

func (s *service) Resolve(ctx context.Context, channel enums.Channel, payload payloads.Payload) (Rendered, error) {
	tpl, err := s.repo.FindActive(ctx, payload.Type(), channel)
	if err != nil {
		return Rendered{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load template")
	}
	if tpl == nil {
		return Fallback(payload), nil
	}

	rendered := Render(*tpl, payload)
	if len(rendered.Missing) > 0 && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"template_id":    tpl.ID.String(),
			"version":        tpl.Version,
			"missing_tokens": strings.Join(rendered.Missing, ","),
		})
		s.logg.Warn(logCtx, "template rendered with missing tokens")
	}
	return rendered, nil
}

func unknownTokens(tokens, known []string) []string {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	var out []string
	for _, token := range tokens {
		if _, ok := allowed[token]; !ok {
			out = append(out, token)
		}
	}
	return out
}
