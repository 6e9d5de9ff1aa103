package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/models"
)

const (
	MaxVideoIDLength = 64
	MaxBatchSize     = 500
)

// Video ids double as output directory names.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Validator struct {
	maxBatch int
}

func NewValidator() *Validator {
	return &Validator{maxBatch: MaxBatchSize}
}

// VideoID accepts a bare video id or a YouTube video URL and returns the id.
func (v *Validator) VideoID(input string) (string, error) {
	const op = "Validator.VideoID"

	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.InvalidInput(op, nil, "video_id is required")
	}

	id := input
	if looksLikeURL(input) {
		parsed, err := extractVideoID(input)
		if err != nil {
			return "", errors.InvalidInput(op, err, fmt.Sprintf("Invalid YouTube URL: %s", input))
		}
		id = parsed
	}

	if len(id) > MaxVideoIDLength || !videoIDPattern.MatchString(id) {
		return "", errors.InvalidInput(op, nil, fmt.Sprintf("Invalid video_id: %s", input))
	}
	return id, nil
}

// VideoIDs validates a batch, keeping order and dropping repeats.
func (v *Validator) VideoIDs(inputs []string) ([]string, error) {
	const op = "Validator.VideoIDs"

	if len(inputs) == 0 {
		return nil, errors.InvalidInput(op, nil, "video_ids must not be empty")
	}
	if len(inputs) > v.maxBatch {
		return nil, errors.InvalidInput(op, nil, fmt.Sprintf("At most %d video_ids per request", v.maxBatch))
	}

	ids := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		id, err := v.VideoID(in)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (v *Validator) Status(s string) (models.Status, error) {
	const op = "Validator.Status"

	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.InvalidInput(op, nil, "status is required")
	}
	status, ok := models.ParseStatus(strings.ToLower(s))
	if !ok {
		return "", errors.InvalidInput(op, nil, fmt.Sprintf("Invalid status: %s", s))
	}
	return status, nil
}

// Progress accepts nil or a finite value in [0, 100].
func (v *Validator) Progress(p *float64) error {
	const op = "Validator.Progress"

	if p == nil {
		return nil
	}
	if math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 || *p > 100 {
		return errors.InvalidInput(op, nil, "progress must be between 0 and 100")
	}
	return nil
}

func looksLikeURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "youtube.com/") ||
		strings.HasPrefix(lower, "www.youtube.com/") ||
		strings.HasPrefix(lower, "m.youtube.com/") ||
		strings.HasPrefix(lower, "youtu.be/")
}

func extractVideoID(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch host {
	case "youtu.be":
		if segments[0] != "" {
			return segments[0], nil
		}
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" && segments[0] == "watch" {
			return id, nil
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "shorts", "embed", "live", "v":
				return segments[1], nil
			}
		}
	default:
		return "", fmt.Errorf("not a YouTube host: %s", host)
	}

	return "", fmt.Errorf("no video id in %s", raw)
}
