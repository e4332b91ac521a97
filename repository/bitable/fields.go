package bitable

import (
	"fmt"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/hosttable"
)

// FieldKey is the logical name of a board column in the host table.
type FieldKey string

const (
	FieldName     FieldKey = "NAME"
	FieldAssignee FieldKey = "ASSIGNEE"
	FieldStart    FieldKey = "START"
	FieldEnd      FieldKey = "END"
	FieldComplete FieldKey = "COMPLETE"
	FieldGroup    FieldKey = "GROUP"
	FieldPriority FieldKey = "PRIORITY"
)

// FieldKeys lists every logical field in resolution order.
var FieldKeys = []FieldKey{
	FieldName,
	FieldAssignee,
	FieldStart,
	FieldEnd,
	FieldComplete,
	FieldGroup,
	FieldPriority,
}

// FieldNames maps logical keys to the display names used in the host table.
// Matching is exact: case, spacing and diacritics all count.
type FieldNames map[FieldKey]string

// DefaultFieldNames are the column names of the production Lark Base.
func DefaultFieldNames() FieldNames {
	return FieldNames{
		FieldName:     "Tên công việc",
		FieldAssignee: "Người thực hiện",
		FieldStart:    "Thời gian bắt đầu",
		FieldEnd:      "Thời gian kết thúc",
		FieldComplete: "Thời gian hoàn thành",
		FieldGroup:    "Nhóm công việc",
		FieldPriority: "Mức độ ưu tiên",
	}
}

// Merge returns n with every non-empty override applied.
func (n FieldNames) Merge(overrides map[string]string) FieldNames {
	out := make(FieldNames, len(n))
	for k, v := range n {
		out[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			out[FieldKey(k)] = v
		}
	}
	return out
}

// FieldMap maps logical keys to host field ids.
type FieldMap map[FieldKey]string

func (m FieldMap) clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// resolveFieldMap matches host fields by display name and reports the keys
// that could not be found.
func resolveFieldMap(names FieldNames, fields []hosttable.Field) (FieldMap, []FieldKey) {
	byName := make(map[string]hosttable.Field, len(fields))
	for _, f := range fields {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = f
		}
	}

	resolved := make(FieldMap, len(FieldKeys))
	var missing []FieldKey
	for _, key := range FieldKeys {
		f, ok := byName[names[key]]
		if !ok {
			missing = append(missing, key)
			continue
		}
		resolved[key] = f.ID
	}
	return resolved, missing
}

var fieldTypes = map[FieldKey]hosttable.FieldType{
	FieldName:     hosttable.FieldTypeText,
	FieldAssignee: hosttable.FieldTypeUser,
	FieldStart:    hosttable.FieldTypeDateTime,
	FieldEnd:      hosttable.FieldTypeDateTime,
	FieldComplete: hosttable.FieldTypeDateTime,
	FieldGroup:    hosttable.FieldTypeSingleSelect,
	FieldPriority: hosttable.FieldTypeSingleSelect,
}

// DefaultSchema describes the seven board columns for drivers that create
// their own table. Field ids are stable so seeded tables stay compatible.
func DefaultSchema(names FieldNames, groups []string) []hosttable.Field {
	ids := map[FieldKey]string{
		FieldName:     "fld_name",
		FieldAssignee: "fld_assignee",
		FieldStart:    "fld_start",
		FieldEnd:      "fld_end",
		FieldComplete: "fld_complete",
		FieldGroup:    "fld_group",
		FieldPriority: "fld_priority",
	}

	schema := make([]hosttable.Field, 0, len(FieldKeys))
	for _, key := range FieldKeys {
		f := hosttable.Field{ID: ids[key], Name: names[key], Type: fieldTypes[key]}
		switch key {
		case FieldGroup:
			for i, g := range groups {
				f.Options = append(f.Options, hosttable.Option{ID: optionID("grp", i), Name: g})
			}
		case FieldPriority:
			for i, p := range domain.Priorities {
				f.Options = append(f.Options, hosttable.Option{ID: optionID("pri", i), Name: string(p)})
			}
		}
		schema = append(schema, f)
	}
	return schema
}

func optionID(prefix string, i int) string {
	return fmt.Sprintf("opt_%s_%d", prefix, i+1)
}
