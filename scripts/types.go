package scripts

import (
	"time"
)

// Config holds the configuration for the Runner
type Config struct {
	Command     string        // Interpreter or binary to execute
	Script      string        // Extractor script passed as first argument, optional
	OutputDir   string        // Per-video output directories are created under this path
	Timeout     time.Duration // Per-extraction timeout, zero for none
	Environment []string      // Additional environment variables
}

// ProgressFunc receives progress percentages reported by the extractor.
type ProgressFunc func(progress float64)

// Result is the successful outcome of one extraction.
type Result struct {
	OutputPaths map[string]string `json:"output_paths"`
}

const (
	messageProgress = "progress"
	messageResult   = "result"

	statusSuccess = "success"
	statusError   = "error"
)

// message is one line of the extractor's newline-delimited JSON stdout.
type message struct {
	Type        string            `json:"type"`
	Progress    float64           `json:"progress,omitempty"`
	Status      string            `json:"status,omitempty"`
	OutputPaths map[string]string `json:"output_paths,omitempty"`
	Error       string            `json:"error,omitempty"`
}
