package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/flightnotify/api/responses"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

type attemptLister interface {
	ListByNotification(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error)
}

// ListDeliveryAttempts returns every delivery attempt recorded for a
// notification id, across channels.
func ListDeliveryAttempts(log attemptLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notificationID := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		if notificationID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "notificationId is required"))
			return
		}
		attempts, err := log.ListByNotification(r.Context(), notificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempts)
	}
}
