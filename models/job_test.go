package models

import (
	"encoding/json"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, false},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusProcessing, StatusCancelled, false},
		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusProcessing, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("cancelled"); !ok || s != StatusCancelled {
		t.Errorf("expected cancelled, got %q (%v)", s, ok)
	}
	if _, ok := ParseStatus("done"); ok {
		t.Error("expected unknown status to be rejected")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCanRetry(t *testing.T) {
	job := &Job{Status: StatusFailed, RetryCount: 2}
	if !job.CanRetry(3) {
		t.Error("expected retry to be allowed below the cap")
	}
	job.RetryCount = 3
	if job.CanRetry(3) {
		t.Error("expected retry to be refused at the cap")
	}
}

func TestEventWireShape(t *testing.T) {
	data, err := json.Marshal(HeartbeatEvent())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"heartbeat"}` {
		t.Errorf("unexpected heartbeat payload: %s", data)
	}

	data, err = json.Marshal(JobUpdateEvent(&Job{ID: "j1", VideoID: "abc", Status: StatusPending}))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != EventJobUpdate {
		t.Errorf("unexpected type %v", decoded["type"])
	}
	job, ok := decoded["job"].(map[string]interface{})
	if !ok || job["id"] != "j1" || job["status"] != "pending" {
		t.Errorf("unexpected job payload: %v", decoded["job"])
	}
}
