package models

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	VideoID    string   `json:"video_id"`
	VideoTitle *string  `json:"video_title,omitempty"`
	PlaylistID *string  `json:"playlist_id,omitempty"`
	ChannelID  *string  `json:"channel_id,omitempty"`
	Metadata   Metadata `json:"metadata,omitempty"`
}

// UpdateJobRequest is the body of PATCH /api/jobs/{id}.
type UpdateJobRequest struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
}

// AddSelectedRequest is the body of POST /api/jobs/add-selected.
type AddSelectedRequest struct {
	VideoIDs   []string `json:"video_ids"`
	PlaylistID *string  `json:"playlist_id,omitempty"`
	ChannelID  *string  `json:"channel_id,omitempty"`
}

type JobListResponse struct {
	Jobs  []*Job `json:"jobs"`
	Count int    `json:"count"`
}

type AddSelectedResponse struct {
	Created int    `json:"created"`
	Jobs    []*Job `json:"jobs"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

// Stats counts jobs per status.
type Stats map[Status]int

// WebSocket message types
const (
	EventJobUpdate  = "job_update"
	EventJobDeleted = "job_deleted"
	EventHeartbeat  = "heartbeat"
)

// Event is a message pushed to every connected WebSocket client.
type Event struct {
	Type  string `json:"type"`
	Job   *Job   `json:"job,omitempty"`
	JobID string `json:"job_id,omitempty"`
}

func JobUpdateEvent(job *Job) Event {
	return Event{Type: EventJobUpdate, Job: job}
}

func JobDeletedEvent(id string) Event {
	return Event{Type: EventJobDeleted, JobID: id}
}

func HeartbeatEvent() Event {
	return Event{Type: EventHeartbeat}
}
