package tasks

import (
	"encoding/json"
	"time"
)

// ---
// QUEUE DEFINITIONS
// ---
// Names shared by the api and worker processes.
const (
	// QueueExportWakeup is a Redis list the api pushes to after enqueueing
	// an export, so an idle worker ticks right away instead of waiting out
	// its polling delay.
	QueueExportWakeup = "q_export_wakeup"

	// ChannelExportEvents is the Redis pub/sub channel for job lifecycle
	// events.
	ChannelExportEvents = "export_events"

	// QueueExportEvents is the durable RabbitMQ queue carrying the same
	// events for consumers outside this service.
	QueueExportEvents = "export_events"
)

// Event types.
const (
	EventQueued    = "queued"
	EventStarted   = "started"
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventRemoved   = "removed"
)

// ---
// PAYLOADS
// ---

// ExportEvent describes a change to an export job.
type ExportEvent struct {
	Type       string    `json:"type"`
	JobID      uint      `json:"job_id"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	ArtifactID uint      `json:"artifact_id,omitempty"`
	Time       time.Time `json:"time"`
}

// WakeupPayload is pushed to QueueExportWakeup.
type WakeupPayload struct {
	JobID uint `json:"job_id"`
}

// ---
// HELPER FUNCTIONS
// ---

// Marshal creates a JSON payload for a task.
func Marshal(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
