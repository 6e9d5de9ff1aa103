package models

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// DefaultMaxRetries caps retry_count unless configured otherwise.
const DefaultMaxRetries = 3

// Output path kinds written by the extractor.
const (
	OutputTranscriptMarkdown = "transcript_md"
	OutputTranscriptJSON     = "transcript_json"
	OutputMetadata           = "metadata"
)

var statuses = map[Status]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
}

// ParseStatus returns the status named by s and whether it is known.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := statuses[st]
	return st, ok
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no worker will touch the job again without an explicit retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// transitions lists the edges a client may request. Only the worker's claim
// moves a job to processing, and only its failure path requeues one.
// Guards (retry cap, output paths) are enforced by the store.
var transitions = map[Status][]Status{
	StatusPending:    {StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OutputPaths maps an artifact kind to its storage path.
type OutputPaths map[string]string

// Metadata is an opaque JSON document attached to a job.
type Metadata map[string]interface{}

type Job struct {
	ID            string      `json:"id"`
	VideoID       string      `json:"video_id"`
	VideoTitle    *string     `json:"video_title"`
	PlaylistID    *string     `json:"playlist_id"`
	ChannelID     *string     `json:"channel_id"`
	Status        Status      `json:"status"`
	Progress      float64     `json:"progress"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     *time.Time  `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	NextAttemptAt *time.Time  `json:"next_attempt_at,omitempty"`
	ErrorMessage  *string     `json:"error_message"`
	RetryCount    int         `json:"retry_count"`
	OutputPaths   OutputPaths `json:"output_paths"`
	Metadata      Metadata    `json:"metadata"`
}

// Status check methods
func (j *Job) IsPending() bool    { return j.Status == StatusPending }
func (j *Job) IsProcessing() bool { return j.Status == StatusProcessing }
func (j *Job) IsCompleted() bool  { return j.Status == StatusCompleted }
func (j *Job) IsFailed() bool     { return j.Status == StatusFailed }

// CanRetry reports whether a failed job may return to pending.
func (j *Job) CanRetry(maxRetries int) bool {
	return j.Status == StatusFailed && j.RetryCount < maxRetries
}

// NewJobInput carries the caller-supplied fields of a new job.
type NewJobInput struct {
	VideoID    string
	VideoTitle *string
	PlaylistID *string
	ChannelID  *string
	Metadata   Metadata
}
