// Package enrichment provides optional structural option-levels data from an
// external analytic tool. Enrichment is strictly best-effort: any failure is
// reported to the caller as an error to be degraded, never propagated as a
// pipeline fault.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Source supplies structural enrichment for a set of instruments on a date.
// Implementations must be safe for concurrent use.
type Source interface {
	Fetch(ctx context.Context, date time.Time, instruments []string) (json.RawMessage, error)
}

// invokeTimeout is the hard ceiling on a subprocess run; on expiry the
// process is killed, not waited on.
const invokeTimeout = 30 * time.Second

// SubprocessSource runs an external binary with --date/--instruments and
// expects a JSON object on stdout with exit code 0.
type SubprocessSource struct {
	binary string
	logger zerolog.Logger
}

// NewSubprocessSource creates a source for the given binary path.
func NewSubprocessSource(binary string, logger zerolog.Logger) *SubprocessSource {
	return &SubprocessSource{
		binary: binary,
		logger: logger.With().Str("component", "enrichment").Logger(),
	}
}

// Fetch invokes the tool under a 30s deadline. Every failure mode (missing
// binary, non-zero exit, timeout, malformed output) comes back as an error.
func (s *SubprocessSource) Fetch(ctx context.Context, date time.Time, instruments []string) (json.RawMessage, error) {
	if s.binary == "" {
		return nil, fmt.Errorf("enrichment: no binary configured")
	}

	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary,
		"--date", date.UTC().Format("2006-01-02"),
		"--instruments", strings.Join(instruments, ","),
		"--output-format", "json",
	)
	// Kill immediately on deadline instead of waiting for a graceful exit.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		s.logger.Warn().Err(err).Dur("elapsed", time.Since(started)).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("enrichment subprocess failed")
		return nil, fmt.Errorf("enrichment: subprocess: %w", err)
	}

	raw := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(raw) {
		return nil, fmt.Errorf("enrichment: subprocess produced invalid JSON")
	}

	return json.RawMessage(raw), nil
}

// NoopSource always reports enrichment unavailable, for deployments without
// the external tool.
type NoopSource struct{}

// Fetch implements Source.
func (NoopSource) Fetch(context.Context, time.Time, []string) (json.RawMessage, error) {
	return nil, fmt.Errorf("enrichment: not configured")
}
