package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is an arbitrary JSON object stored alongside financial records
// (booking ids, fee breakdowns, payout account details).
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", src)
	}

	return json.Unmarshal(data, m)
}
