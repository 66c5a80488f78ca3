package preferences

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/flightnotify/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/types"
)

func TestRepositoryGetDefaultsForUnknownUser(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB())

	doc, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, types.DefaultPreferenceDocument(), doc)
}

func TestServicePutRoundTrip(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB())
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := svc.Put(ctx, "user-1", types.PreferenceDocument{
		Preferences: map[string]map[string]bool{"Price_Alert": {"sms": false}},
		QuietHours:  &types.QuietHours{Start: 22, End: 6},
		Timezone:    "Europe/Madrid",
	})
	require.NoError(t, err)
	require.False(t, stored.Preferences["price_alert"]["sms"])

	loaded, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, stored, loaded)

	_, err = svc.Put(ctx, "user-1", types.PreferenceDocument{Timezone: "UTC"})
	require.NoError(t, err)
	loaded, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Nil(t, loaded.QuietHours)
	require.Empty(t, loaded.Preferences)
}

func TestServicePutRejectsInvalidDocuments(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.New(t).DB()))
	require.NoError(t, err)
	ctx := context.Background()

	cases := map[string]types.PreferenceDocument{
		"timezone":    {Timezone: "Nowhere/Special"},
		"quiet hours": {QuietHours: &types.QuietHours{Start: 25, End: 6}},
		"channel":     {Preferences: map[string]map[string]bool{"reminder": {"pigeon": true}}},
	}
	for name, doc := range cases {
		_, err := svc.Put(ctx, "user-1", doc)
		require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), name)
	}

	_, err = svc.Put(ctx, " ", types.PreferenceDocument{})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
