package entity

import "fmt"

// State is the initialization state of a Registry
type State int

const (
	// NotStarted means Initialize has never run or the registry was cleared
	NotStarted State = iota
	// InProgress means an initialization attempt is building entities
	InProgress
	// Completed means every definition was built and relationships resolved
	Completed
	// Failed means the last initialization attempt aborted
	Failed
)

var stateNames = map[State]string{
	NotStarted: "not_started",
	InProgress: "in_progress",
	Completed:  "completed",
	Failed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler so states render by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
