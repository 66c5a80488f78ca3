package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("expected buffer limit 11, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.UTC)
	id := uuid.New()

	encoded := EncodeCursor(Cursor{At: at, ID: id})
	decoded, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !decoded.At.Equal(at) || decoded.ID != id {
		t.Fatalf("unexpected cursor %+v", decoded)
	}

	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %+v %v", c, err)
	}
	for _, bad := range []string{"!!!", EncodeCursorRaw("no-separator"), EncodeCursorRaw("zz.not-a-uuid")} {
		_, err := ParseCursor(bad)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %q, got %v", bad, err)
		}
	}
}

func EncodeCursorRaw(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestBuildPage(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{At: r.at, ID: r.id} }

	page := BuildPage(rows, 2, cursorOf)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected trimmed page with cursor, got %d items cursor=%q", len(page.Items), page.NextCursor)
	}
	next, err := ParseCursor(page.NextCursor)
	if err != nil || next.ID != rows[1].id {
		t.Fatalf("cursor should point at last kept row, got %+v err=%v", next, err)
	}

	last := BuildPage(rows[:1], 2, cursorOf)
	if last.NextCursor != "" || len(last.Items) != 1 {
		t.Fatalf("expected final page without cursor, got %+v", last)
	}

	empty := BuildPage[row](nil, 2, cursorOf)
	if empty.Items == nil {
		t.Fatal("empty page should serialize as an empty list")
	}
}
