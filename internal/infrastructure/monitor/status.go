package monitor

import "time"

// Status is the last health snapshot. Services only lists the backends the
// running driver actually uses; Records is set for the bbolt driver.
type Status struct {
	Driver    string          `json:"driver"`
	Attached  bool            `json:"attached"`
	Services  map[string]bool `json:"services"`
	Records   *int            `json:"records,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	LastCheck time.Time       `json:"last_check"`
}

// Healthy reports whether the board is attached (when it should be) and
// every backend answered.
func (s Status) Healthy(expectAttached bool) bool {
	if expectAttached && !s.Attached {
		return false
	}
	for _, ok := range s.Services {
		if !ok {
			return false
		}
	}
	return true
}
