package resource

import "fmt"

// Status is the state of a resource.
type Status uint8

const (
	// Idle means no run is active: no params, disconnected host, or not
	// started yet.
	Idle Status = iota
	// Loading means a run is in flight.
	Loading
	// Reloading means a run forced by Reload or a host reconnect is in flight
	// with unchanged params.
	Reloading
	// Resolved means the latest run succeeded.
	Resolved
	// Error means the latest run failed. Err is non-nil.
	Error
	// Local means the value was written with Set or Update.
	Local
)

var statusNames = [...]string{
	Idle:      "idle",
	Loading:   "loading",
	Reloading: "reloading",
	Resolved:  "resolved",
	Error:     "error",
	Local:     "local",
}

// String returns the lower-case status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("resource: unknown status %q", b)
}

// Pending reports whether a run is in flight.
func (s Status) Pending() bool {
	return s == Loading || s == Reloading
}

// Snapshot is the state of a resource at one transition.
type Snapshot[V any] struct {
	Status Status
	Value  V
	Err    error
}
