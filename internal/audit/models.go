package audit

import "time"

// Event is emitted from the linking flows to capture who linked, registered
// or resolved what, and how it ended. Keep it transport-agnostic so sinks
// can fan out.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id,omitempty"`
	Action    string            `json:"action"`
	Role      string            `json:"role,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Status    string            `json:"status"`
	Outcome   string            `json:"outcome"`
	Detail    map[string]string `json:"detail,omitempty"`
}

const (
	ActionLink           = "identity.link"
	ActionRegister       = "identity.register"
	ActionResolveSession = "identity.session"
	ActionBulkRegister   = "roster.bulk_register"
	ActionBulkIssue      = "roster.bulk_issue"
)
