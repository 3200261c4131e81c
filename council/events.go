package council

// Stream event types, in emission order for a successful run. The title
// event's position is not fixed relative to the stage events because the
// title is generated concurrently.
const (
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventTitleComplete  = "title_complete"
	EventComplete       = "complete"
	EventError          = "error"
)

// ErrorCodeQuotaExceeded is the wire code for an aborted run caused by
// exhausted provider credits.
const ErrorCodeQuotaExceeded = "quota_exceeded"

// Event is one server-sent progress update during a council run.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	Message   string    `json:"message,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
}

// StartEvent announces that a stage began.
func StartEvent(eventType string) Event {
	return Event{Type: eventType}
}

// DataEvent carries a completed stage's results.
func DataEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data}
}

// Stage2CompleteEvent carries the rankings plus the de-anonymization
// metadata the client needs to render them.
func Stage2CompleteEvent(results []Stage2Result, md Metadata) Event {
	return Event{Type: EventStage2Complete, Data: results, Metadata: &md}
}

// TitleEvent announces the generated conversation title.
func TitleEvent(title string) Event {
	return Event{Type: EventTitleComplete, Data: map[string]string{"title": title}}
}

// ErrorEvent reports a failed run. code may be empty for generic failures.
func ErrorEvent(message, code string) Event {
	return Event{Type: EventError, Message: message, ErrorCode: code}
}
