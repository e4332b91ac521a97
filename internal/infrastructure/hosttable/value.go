package hosttable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Value is a decoded host cell. The concrete type depends on the field type.
type Value interface {
	isValue()
}

// TextValue is plain text. It is also the write form for select fields.
type TextValue struct {
	Text string
}

// SelectValue is a single-select option as read from the host.
type SelectValue struct {
	ID   string
	Text string
}

// UserEntry is one person in a user field.
type UserEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserListValue is the content of a user field.
type UserListValue struct {
	Entries []UserEntry
}

// DateValue is a millisecond instant.
type DateValue struct {
	Instant time.Time
}

// NullValue clears a field when written.
type NullValue struct{}

func (TextValue) isValue()     {}
func (SelectValue) isValue()   {}
func (UserListValue) isValue() {}
func (DateValue) isValue()     {}
func (NullValue) isValue()     {}

var ErrUnsupportedFieldType = errors.New("hosttable: unsupported field type")

// DecodeValue turns a raw JSON cell into a Value for the given field type.
// A JSON null or empty input yields (nil, nil): the cell is absent.
func DecodeValue(ft FieldType, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch ft {
	case FieldTypeText:
		return decodeText(raw)
	case FieldTypeSingleSelect:
		return decodeSelect(raw)
	case FieldTypeDateTime:
		return decodeDate(raw)
	case FieldTypeUser:
		return decodeUsers(raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFieldType, ft)
	}
}

// EncodeValue returns the JSON wire form of v.
func EncodeValue(v Value) (json.RawMessage, error) {
	switch val := v.(type) {
	case nil, NullValue:
		return json.RawMessage("null"), nil
	case TextValue:
		return json.Marshal(val.Text)
	case SelectValue:
		return json.Marshal(struct {
			ID   string `json:"id,omitempty"`
			Text string `json:"text"`
		}{ID: val.ID, Text: val.Text})
	case UserListValue:
		entries := val.Entries
		if entries == nil {
			entries = []UserEntry{}
		}
		return json.Marshal(entries)
	case DateValue:
		return json.Marshal(val.Instant.UnixMilli())
	default:
		return nil, fmt.Errorf("hosttable: cannot encode %T", v)
	}
}

// EncodeFields encodes every value of fields.
func EncodeFields(fields Fields) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields))
	for id, v := range fields {
		raw, err := EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		out[id] = raw
	}
	return out, nil
}

// DecodeFields decodes raw cells keyed by field id using the field types in
// types. Cells of unknown fields or unsupported types are skipped.
func DecodeFields(types map[string]FieldType, raw map[string]json.RawMessage) (Fields, error) {
	out := make(Fields, len(raw))
	for id, cell := range raw {
		ft, ok := types[id]
		if !ok {
			continue
		}
		v, err := DecodeValue(ft, cell)
		if errors.Is(err, ErrUnsupportedFieldType) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		if v != nil {
			out[id] = v
		}
	}
	return out, nil
}

type textSegment struct {
	Text string `json:"text"`
}

func decodeText(raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return TextValue{Text: s}, nil
	}
	var segments []textSegment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return TextValue{Text: b.String()}, nil
}

func decodeSelect(raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return SelectValue{Text: s}, nil
	}
	var obj struct {
		ID   string `json:"id"`
		Text string `json:"text"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode select: %w", err)
	}
	text := obj.Text
	if text == "" {
		text = obj.Name
	}
	return SelectValue{ID: obj.ID, Text: text}, nil
}

func decodeDate(raw json.RawMessage) (Value, error) {
	var ms json.Number
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, fmt.Errorf("decode date: %w", err)
	}
	n, err := ms.Int64()
	if err != nil {
		f, ferr := ms.Float64()
		if ferr != nil {
			return nil, fmt.Errorf("decode date: %w", err)
		}
		n = int64(f)
	}
	return DateValue{Instant: time.UnixMilli(n)}, nil
}

func decodeUsers(raw json.RawMessage) (Value, error) {
	var entries []UserEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return UserListValue{Entries: entries}, nil
}
