package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*NotificationPreferences)(nil)
	_ driver.Valuer = NotificationPreferences{}
	_ sql.Scanner   = (*PastDueSettings)(nil)
	_ driver.Valuer = PastDueSettings{}
	_ sql.Scanner   = (*TimeSlotDefinitions)(nil)
	_ driver.Valuer = TimeSlotDefinitions(nil)
)

// scanJSONB decodes a JSONB column into dest. NULL leaves dest untouched.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

func valueJSONB(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner.
func (np *NotificationPreferences) Scan(value any) error {
	return scanJSONB(np, value)
}

// Value implements driver.Valuer.
func (np NotificationPreferences) Value() (driver.Value, error) {
	return valueJSONB(np)
}

// Scan implements sql.Scanner.
func (s *PastDueSettings) Scan(value any) error {
	return scanJSONB(s, value)
}

// Value implements driver.Valuer.
func (s PastDueSettings) Value() (driver.Value, error) {
	return valueJSONB(s)
}

// Scan implements sql.Scanner. A NULL column yields a nil map.
func (d *TimeSlotDefinitions) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	return scanJSONB(d, value)
}

// Value implements driver.Valuer.
func (d TimeSlotDefinitions) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(map[TimeSlot]SlotWindow(d))
}
