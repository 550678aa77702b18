package models

import (
	"database/sql/driver"
	"encoding/json"
)

// AttachmentMeta is lightweight attachment metadata. Raw attachment bytes are
// never persisted, only what the UI and webhook payload need.
type AttachmentMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// AttachmentMetaList is stored as a JSONB column
type AttachmentMetaList []AttachmentMeta

// Value implements the driver.Valuer interface for AttachmentMetaList
func (a AttachmentMetaList) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(AttachmentMetaList{})
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for AttachmentMetaList
func (a *AttachmentMetaList) Scan(value interface{}) error {
	if value == nil {
		*a = AttachmentMetaList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// JSONMap represents a JSON object that can be stored in PostgreSQL
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for JSONMap
func (j JSONMap) Value() (driver.Value, error) {
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONMap
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}
