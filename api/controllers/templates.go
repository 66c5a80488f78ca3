package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/flightnotify/api/responses"
	"github.com/angelmondragon/flightnotify/api/validators"
	"github.com/angelmondragon/flightnotify/internal/templates"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

// RegisterTemplateRequest is a new template version.
type RegisterTemplateRequest struct {
	Type     string `json:"type" validate:"required,max=64"`
	Channel  string `json:"channel" validate:"required,oneof=email sms push in_app"`
	Subject  string `json:"subject" validate:"max=255"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text" validate:"required"`
	Active   *bool  `json:"active"`
}

// RegisterTemplate stores a new version for a type and channel. Versions are
// active unless the request says otherwise.
func RegisterTemplate(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		var body RegisterTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationType, err := enums.ParseNotificationType(strings.TrimSpace(body.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		active := true
		if body.Active != nil {
			active = *body.Active
		}

		tpl, err := svc.Register(r.Context(), templates.RegisterInput{
			Type:     notificationType,
			Channel:  enums.Channel(body.Channel),
			Subject:  validators.SanitizeString(body.Subject, 255),
			BodyHTML: body.BodyHTML,
			BodyText: body.BodyText,
			Active:   active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tpl)
	}
}

// ListTemplates returns template versions filtered by optional type and
// channel query parameters.
func ListTemplates(svc templates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		var filter templates.ListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			t, err := enums.ParseNotificationType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			filter.Type = t
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("channel")); raw != "" {
			c, err := enums.ParseChannel(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel"))
				return
			}
			filter.Channel = c
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// SetTemplateActive toggles one template version.
func SetTemplateActive(svc templates.Service, active bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "templateId"), "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetActive(r.Context(), id, active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id.String(), "active": active})
	}
}
