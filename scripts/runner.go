package scripts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxLineSize = 1024 * 1024

type Runner struct {
	config Config
	logger *logrus.Logger
}

func NewRunner(cfg Config, logger *logrus.Logger) (*Runner, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{config: cfg, logger: logger}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Command == "" {
		return errors.New("extractor command is required")
	}
	if cfg.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if cfg.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if cfg.Script != "" {
		if _, err := os.Stat(cfg.Script); err != nil {
			return errors.Wrapf(err, "extractor script not found: %s", cfg.Script)
		}
	}
	return nil
}

// Extract runs the extractor for one video and streams its progress to
// onProgress. The returned error is a *ScriptError.
func (r *Runner) Extract(ctx context.Context, videoID string, onProgress ProgressFunc) (*Result, error) {
	const op = "Runner.Extract"

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	outputDir := filepath.Join(r.config.OutputDir, videoID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, newScriptError(op, err, "failed to create output directory")
	}

	args := buildCommandArgs(r.config.Script, videoID, outputDir)
	logger := r.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"command":  r.config.Command,
		"args":     args,
	})
	logger.Debug("Executing extractor")

	cmd := exec.CommandContext(ctx, r.config.Command, args...)
	cmd.Env = append(os.Environ(), r.config.Environment...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, newScriptError(op, err, "failed to open extractor output")
	}

	if err := cmd.Start(); err != nil {
		return nil, newScriptError(op, err, "failed to start extractor")
	}

	final, scanErr := readMessages(stdout, onProgress, logger)
	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, newScriptError(op, ctx.Err(), "extraction timed out")
	}
	if ctx.Err() != nil {
		return nil, newScriptError(op, ctx.Err(), "extraction cancelled")
	}
	if final != nil && final.Status == statusError {
		msg := final.Error
		if msg == "" {
			msg = "extractor reported an error"
		}
		return nil, newScriptError(op, nil, msg)
	}
	if waitErr != nil {
		stderrOutput := strings.TrimSpace(stderr.String())
		logger.WithFields(logrus.Fields{
			"error":  waitErr,
			"stderr": stderrOutput,
		}).Error("Extractor execution failed")
		return nil, newScriptError(op, waitErr, failedRunMessage(waitErr, stderrOutput))
	}
	if scanErr != nil {
		return nil, newScriptError(op, scanErr, "failed to read extractor output")
	}
	if final == nil {
		return nil, newScriptError(op, nil, "extractor produced no result")
	}
	if final.Status != statusSuccess {
		return nil, newScriptError(op, nil, fmt.Sprintf("unexpected result status %q", final.Status))
	}
	if len(final.OutputPaths) == 0 {
		return nil, newScriptError(op, nil, "extractor reported no output paths")
	}

	return &Result{OutputPaths: final.OutputPaths}, nil
}

func buildCommandArgs(script, videoID, outputDir string) []string {
	var cmdArgs []string
	if script != "" {
		cmdArgs = append(cmdArgs, script)
	}
	return append(cmdArgs,
		"--video-id", videoID,
		"--output-dir", outputDir,
		"--json",
	)
}

// readMessages consumes the extractor's stdout. The last result line wins.
func readMessages(stdout io.Reader, onProgress ProgressFunc, logger *logrus.Entry) (*message, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var final *message
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.WithField("line", string(line)).Debug("Ignoring non-JSON extractor output")
			continue
		}

		switch msg.Type {
		case messageProgress:
			if onProgress != nil {
				onProgress(msg.Progress)
			}
		case messageResult:
			m := msg
			final = &m
		default:
			logger.WithField("type", msg.Type).Debug("Ignoring unknown extractor message")
		}
	}

	if err := scanner.Err(); err != nil {
		// Keep the pipe drained so the extractor can exit.
		io.Copy(io.Discard, stdout)
		return final, err
	}
	return final, nil
}

func failedRunMessage(err error, stderr string) string {
	if stderr == "" {
		return fmt.Sprintf("extractor failed: %v", err)
	}
	lines := strings.Split(stderr, "\n")
	return fmt.Sprintf("extractor failed: %v: %s", err, strings.TrimSpace(lines[len(lines)-1]))
}
