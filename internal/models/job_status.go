package models

// Job status constants. completed and failed are terminal.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Output format constants
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
	OutputFormatSRT  = "srt"
	OutputFormatVTT  = "vtt"
)

// Subscription status values that count as active.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
)

// IsTerminalStatus reports whether no further job mutation is valid.
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
