package preferences

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/types"
)

// Service validates preference documents on the way in and shields callers
// from storage errors on the way out.
type Service interface {
	Get(ctx context.Context, userID string) (types.PreferenceDocument, error)
	Put(ctx context.Context, userID string, doc types.PreferenceDocument) (types.PreferenceDocument, error)
}

type service struct {
	repo Repository
}

// NewService wires the preferences service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preferences repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID string) (types.PreferenceDocument, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.PreferenceDocument{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	doc, err := s.repo.Get(ctx, userID)
	if err != nil {
		return types.PreferenceDocument{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	return doc, nil
}

func (s *service) Put(ctx context.Context, userID string, doc types.PreferenceDocument) (types.PreferenceDocument, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.PreferenceDocument{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	normalized, err := normalizeDocument(doc)
	if err != nil {
		return types.PreferenceDocument{}, err
	}
	if err := s.repo.Upsert(ctx, userID, normalized); err != nil {
		return types.PreferenceDocument{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store preferences")
	}
	return normalized, nil
}

func normalizeDocument(doc types.PreferenceDocument) (types.PreferenceDocument, error) {
	out := types.DefaultPreferenceDocument()

	if tz := strings.TrimSpace(doc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "unknown timezone").
				WithDetails(map[string]any{"timezone": tz})
		}
		out.Timezone = tz
	}

	if q := doc.QuietHours; q != nil {
		if q.Start < 0 || q.Start > 23 || q.End < 0 || q.End > 23 {
			return out, pkgerrors.New(pkgerrors.CodeValidation, "quiet hours must be within 0-23")
		}
		quiet := *q
		out.QuietHours = &quiet
	}

	for rawType, channels := range doc.Preferences {
		t, err := enums.ParseNotificationType(rawType)
		if err != nil {
			return out, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification type")
		}
		normalized := make(map[string]bool, len(channels))
		for rawChannel, enabled := range channels {
			ch, err := enums.ParseChannel(rawChannel)
			if err != nil {
				return out, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel").
					WithDetails(map[string]any{"type": string(t), "channel": rawChannel})
			}
			normalized[string(ch)] = enabled
		}
		out.Preferences[string(t)] = normalized
	}
	return out, nil
}
