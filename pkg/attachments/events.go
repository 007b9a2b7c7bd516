package attachments

import "fmt"

// EventType represents the kind of change a mirror applied.
type EventType string

const (
	EventPushed  EventType = "PUSHED"
	EventRemoved EventType = "REMOVED"
)

// Event represents one mirrored change.
type Event struct {
	Type      EventType
	FileName  string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.FileName)
}
