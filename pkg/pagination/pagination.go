// Package pagination implements keyset paging over (timestamp, id) ordered
// tables: the inbox and the dead-letter list.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is the last row of the previous page.
type Cursor struct {
	At time.Time
	ID uuid.UUID
}

// Page is one slice of results plus the cursor for the following slice.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit clamps limit to (0, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so BuildPage can tell whether a
// next page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Newest orders by column then id, both descending, starts strictly after
// cursor when one is given and fetches a buffered page. The seek predicate is
// spelled out instead of a row-value comparison so it reads the same on
// Postgres and SQLite.
func Newest(column string, cursor *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where(column+" < ? OR ("+column+" = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
		}
		return db.Order(column + " DESC").Order("id DESC").Limit(LimitWithBuffer(limit))
	}
}

// BuildPage drops the buffer row and derives the next cursor from the last
// row kept.
func BuildPage[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if rows == nil {
		rows = []T{}
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{Items: kept, NextCursor: EncodeCursor(cursorOf(kept[limit-1]))}
}

// EncodeCursor renders "<unix nanos base36>.<uuid>" as URL-safe base64.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.At.UnixNano(), 36) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for a blank value. Malformed cursors are
// validation errors.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	c, err := decodeCursor(value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return c, nil
}

func decodeCursor(value string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, fmt.Errorf("cursor missing separator")
	}
	n, err := strconv.ParseInt(nanos, 36, 64)
	if err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	return &Cursor{At: time.Unix(0, n).UTC(), ID: parsed}, nil
}
