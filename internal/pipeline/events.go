package pipeline

// EventType names a record in the progress stream.
type EventType string

const (
	EventProgress        EventType = "progress"
	EventStatus          EventType = "status"
	EventError           EventType = "error"
	EventSectionComplete EventType = "section_complete"
	EventSectionError    EventType = "section_error"
	EventPromptProgress  EventType = "prompt_progress"
	EventImageProgress   EventType = "image_progress"
	EventComplete        EventType = "complete"
)

// Terminal reports whether the event type ends a stream.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// ItemFailure is the wire form of a failed item.
type ItemFailure struct {
	ItemIndex int    `json:"itemIndex"`
	Reason    string `json:"reason"`
}

// Event is one self-delimited record in a progress stream.
type Event struct {
	Type      EventType     `json:"type"`
	RunID     string        `json:"runId,omitempty"`
	ItemIndex *int          `json:"itemIndex,omitempty"`
	SectionID any           `json:"sectionId,omitempty"`
	Current   int           `json:"current,omitempty"`
	Total     int           `json:"total,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Success   *bool         `json:"success,omitempty"`
	Filename  string        `json:"filename,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
	ImageURL  string        `json:"imageUrl,omitempty"`
	Script    any           `json:"script,omitempty"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// IndexPtr returns a pointer suitable for Event.ItemIndex.
func IndexPtr(i int) *int { return &i }

// BoolPtr returns a pointer suitable for Event.Success.
func BoolPtr(b bool) *bool { return &b }

// StatusEvent builds a status record.
func StatusEvent(message string) Event {
	return Event{Type: EventStatus, Message: message}
}

// ErrorEvent builds a terminal error record.
func ErrorEvent(err error) Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Event{Type: EventError, Success: BoolPtr(false), Error: msg}
}
