// Package hosttable describes the external table the board reads and writes.
// Drivers (Lark Open API, Postgres, bbolt) implement Table; the bitable
// adapter maps its records onto domain tasks.
package hosttable

import (
	"context"
	"errors"
	"fmt"
)

// FieldType is the logical kind of a host column.
type FieldType int

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeText
	FieldTypeSingleSelect
	FieldTypeDateTime
	FieldTypeUser
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeText:
		return "text"
	case FieldTypeSingleSelect:
		return "single_select"
	case FieldTypeDateTime:
		return "datetime"
	case FieldTypeUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseFieldType is the inverse of FieldType.String.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "text":
		return FieldTypeText, nil
	case "single_select":
		return FieldTypeSingleSelect, nil
	case "datetime":
		return FieldTypeDateTime, nil
	case "user":
		return FieldTypeUser, nil
	case "unknown", "":
		return FieldTypeUnknown, nil
	default:
		return FieldTypeUnknown, fmt.Errorf("hosttable: unknown field type %q", s)
	}
}

func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Option is one entry of a single-select field.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Field describes a host column.
type Field struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options []Option  `json:"options,omitempty"`
}

// OptionNames returns the option names in order.
func (f *Field) OptionNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Options))
	for _, opt := range f.Options {
		names = append(names, opt.Name)
	}
	return names
}

// Fields maps a host field id to its value.
type Fields map[string]Value

// Record is one row of the host table.
type Record struct {
	ID     string
	Fields Fields
}

// Table is the subset of the host SDK the board depends on.
type Table interface {
	FieldList(ctx context.Context) ([]Field, error)
	Field(ctx context.Context, id string) (*Field, error)
	RecordList(ctx context.Context) ([]Record, error)
	AddRecord(ctx context.Context, fields Fields) (string, error)
	SetRecord(ctx context.Context, id string, fields Fields) error
	DeleteRecord(ctx context.Context, id string) error
}

var (
	ErrFieldNotFound  = errors.New("hosttable: field not found")
	ErrRecordNotFound = errors.New("hosttable: record not found")
)
