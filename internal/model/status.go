package model

import "fmt"

// State enumerates the model artifact lifecycle.
type State int

const (
	StateNotDownloaded State = iota
	StateDownloading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotDownloaded:
		return "not_downloaded"
	case StateDownloading:
		return "downloading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalJSON encodes the state as its string form.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Status is the externally visible model lifecycle snapshot. Progress is only
// meaningful while downloading; Message only when in the error state.
type Status struct {
	State    State   `json:"state"`
	Progress float64 `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
}
