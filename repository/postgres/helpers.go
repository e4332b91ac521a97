package postgres

import (
	"encoding/json"

	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
)

func marshalOptions(options []hosttable.Option) []byte {
	if len(options) == 0 {
		return []byte("[]")
	}
	b, err := json.Marshal(options)
	if err != nil {
		return []byte("[]")
	}
	return b
}

// encodeCells encodes fields for a JSONB column. Null cells are kept so
// jsonb_strip_nulls can drop them after the merge.
func encodeCells(fields hosttable.Fields) (string, error) {
	encoded, err := hosttable.EncodeFields(fields)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fieldTypes(fields []hosttable.Field) map[string]hosttable.FieldType {
	types := make(map[string]hosttable.FieldType, len(fields))
	for _, f := range fields {
		types[f.ID] = f.Type
	}
	return types
}
