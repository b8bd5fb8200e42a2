package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MediaList stores message attachments as a JSON column.
type MediaList []Media

// Value implements driver.Valuer interface for database storage
func (ml MediaList) Value() (driver.Value, error) {
	if len(ml) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]Media(ml))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for database retrieval
func (ml *MediaList) Scan(value interface{}) error {
	if value == nil {
		*ml = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, ml)
	case string:
		return json.Unmarshal([]byte(v), ml)
	default:
		return fmt.Errorf("cannot scan %T into MediaList", value)
	}
}

// GormDataType returns the data type for GORM
func (MediaList) GormDataType() string {
	return "json"
}
