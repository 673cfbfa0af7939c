package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DesignList is stored as a JSONB array on custom_orders
type DesignList []Design

// Value implements driver.Valuer
func (d DesignList) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner
func (d *DesignList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = DesignList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported designs column type %T", src)
	}
	return json.Unmarshal(raw, d)
}
