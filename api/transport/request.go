package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskboard/domain"
)

// DecodeTaskPatch reads a create or update body. An absent key leaves the
// field untouched, JSON null (or "" for ids and dates) clears it. Dates are
// RFC3339. "completed": true stamps the completion date with now unless
// completed_date is also given.
func DecodeTaskPatch(body []byte, now time.Time) (domain.TaskPatch, error) {
	var patch domain.TaskPatch

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return patch, domain.ErrInvalidPayload
	}

	if v, ok := raw["name"]; ok {
		s, err := decodeString("name", v)
		if err != nil {
			return patch, err
		}
		patch.Name = domain.Some(s)
	}
	if v, ok := raw["assignee_id"]; ok {
		s, err := decodeString("assignee_id", v)
		if err != nil {
			return patch, err
		}
		var user *domain.User
		if s = strings.TrimSpace(s); s != "" {
			user = &domain.User{ID: s}
		}
		patch.Assignee = domain.Some(user)
	}
	if v, ok := raw["group"]; ok {
		s, err := decodeString("group", v)
		if err != nil {
			return patch, err
		}
		patch.Group = domain.Some(s)
	}
	if v, ok := raw["priority"]; ok {
		s, err := decodeString("priority", v)
		if err != nil {
			return patch, err
		}
		patch.Priority = domain.Some(domain.Priority(s))
	}

	for key, dst := range map[string]*domain.Optional[*time.Time]{
		"start_date": &patch.StartDate,
		"end_date":   &patch.EndDate,
	} {
		if v, ok := raw[key]; ok {
			t, err := decodeTime(key, v)
			if err != nil {
				return patch, err
			}
			*dst = domain.Some(t)
		}
	}

	if v, ok := raw["completed"]; ok {
		var done bool
		if err := json.Unmarshal(v, &done); err != nil {
			return patch, invalidField("completed", "must be a boolean")
		}
		if done {
			stamp := now
			patch.CompletedDate = domain.Some(&stamp)
		} else {
			patch.CompletedDate = domain.Some[*time.Time](nil)
		}
	}
	if v, ok := raw["completed_date"]; ok {
		t, err := decodeTime("completed_date", v)
		if err != nil {
			return patch, err
		}
		patch.CompletedDate = domain.Some(t)
	}

	return patch, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func decodeString(key string, v json.RawMessage) (string, error) {
	if isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", invalidField(key, "must be a string")
	}
	return s, nil
}

func decodeTime(key string, v json.RawMessage) (*time.Time, error) {
	s, err := decodeString(key, v)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, invalidField(key, "must be an RFC3339 timestamp")
	}
	return &t, nil
}

func invalidField(key, msg string) error {
	return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("%s %s", key, msg))
}
