package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/goliatone/go-formwizard/pkg/store"
)

// documentRecord is the form_documents row.
type documentRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Collection string    `gorm:"index;not null;size:128"`
	Payload    Payload   `gorm:"not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (documentRecord) TableName() string {
	return "form_documents"
}

func (r documentRecord) toDocument() store.Document {
	return store.Document{
		ID:         r.ID,
		Collection: r.Collection,
		Payload:    map[string]any(r.Payload),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// Payload is a JSON object column.
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (p *Payload) Scan(src any) error {
	var data []byte

	switch val := src.(type) {
	case string:
		data = []byte(val)
	case []byte:
		data = val
	case nil:
		*p = make(Payload)
		return nil
	default:
		return errors.New("sqlstore: invalid type for payload")
	}

	if len(data) == 0 {
		*p = make(Payload)
		return nil
	}
	return json.Unmarshal(data, p)
}

// GormDataType keeps the column portable between sqlite and postgres.
func (Payload) GormDataType() string {
	return "text"
}
