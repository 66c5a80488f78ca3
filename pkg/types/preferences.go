package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// QuietHours is a local-time window expressed in whole hours [0,23].
// Start greater than End wraps past midnight.
type QuietHours struct {
	Start int `json:"start" validate:"min=0,max=23"`
	End   int `json:"end" validate:"min=0,max=23"`
}

// PreferenceDocument is the per-user opt-out document persisted as JSONB.
// Preferences maps notification type to channel to enabled.
type PreferenceDocument struct {
	Preferences map[string]map[string]bool `json:"preferences"`
	QuietHours  *QuietHours                `json:"quiet_hours"`
	Timezone    string                     `json:"timezone"`
}

// DefaultPreferenceDocument is used for users without a stored row.
func DefaultPreferenceDocument() PreferenceDocument {
	return PreferenceDocument{
		Preferences: map[string]map[string]bool{},
		Timezone:    "UTC",
	}
}

// Value marshals the document into JSON for Postgres.
func (d PreferenceDocument) Value() (driver.Value, error) {
	if d.Preferences == nil {
		d.Preferences = map[string]map[string]bool{}
	}
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the document.
func (d *PreferenceDocument) Scan(value interface{}) error {
	if value == nil {
		*d = DefaultPreferenceDocument()
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("preference document: unsupported scan type %T", value)
	}

	result := DefaultPreferenceDocument()
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	if result.Preferences == nil {
		result.Preferences = map[string]map[string]bool{}
	}
	*d = result
	return nil
}
