package measure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Measurer reports the packet loss toward a target as a ratio in [0, 1].
type Measurer interface {
	Measure(ctx context.Context, target string, duration time.Duration) (float64, error)
}

var lossPattern = regexp.MustCompile(`,\s*([0-9]+(?:\.[0-9]+)?)% packet loss`)

// ParseLoss scans ping output for the first summary line and returns the
// loss ratio. ok is false if no line matched.
func ParseLoss(r io.Reader) (ratio float64, ok bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ratio, ok = parseLine(scanner.Text()); ok {
			return ratio, true
		}
	}
	return 0, false
}

func parseLine(line string) (float64, bool) {
	m := lossPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return math.Min(pct/100, 1), true
}

// Ping measures packet loss by running the system ping utility.
type Ping struct {
	// Binary defaults to "ping".
	Binary string
	// Interval is passed to -i, in seconds.
	Interval string
	Stderr   io.Writer
	logger   *zap.Logger
}

// NewPing creates a ping measurer sending an echo request every interval seconds.
func NewPing(interval string, logger *zap.Logger) *Ping {
	return &Ping{
		Binary:   "ping",
		Interval: interval,
		Stderr:   os.Stderr,
		logger:   logger.Named("measure"),
	}
}

// Measure runs ping for duration (rounded to whole seconds) and parses its
// summary. A missing summary line yields 0 with a warning, not an error:
// callers must treat 0 as a possible false negative.
func (p *Ping) Measure(ctx context.Context, target string, duration time.Duration) (float64, error) {
	seconds := int(math.Round(duration.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	cmd := exec.CommandContext(ctx, p.Binary, "-i", p.Interval, "-w", strconv.Itoa(seconds), target)
	cmd.Stderr = p.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("ping stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", p.Binary, err)
	}

	ratio, ok := ParseLoss(stdout)
	// Drain so ping never blocks on a full pipe before exiting.
	_, _ = io.Copy(io.Discard, stdout)

	// ping exits non-zero when replies are missing; the summary still counts.
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%s failed: %w", p.Binary, err)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	if !ok {
		p.logger.Warn("No packet loss summary in ping output, assuming no loss",
			zap.String("target", target))
		return 0, nil
	}
	return ratio, nil
}
