package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"anim-converter/internal/logging"
)

// ProgressFunc receives completion percentages in [0, 100].
type ProgressFunc func(percent float64)

// Runner executes a single stage as a blocking call.
type Runner interface {
	// Command returns the fully resolved argv for a stage, binary first.
	Command(stage Stage) []string
	// Run executes the stage and returns a *StageError on failure.
	Run(ctx context.Context, stage Stage, progress ProgressFunc) error
}

// StageError is an engine failure. Diagnostic is ffmpeg's stderr, passed
// through verbatim for operators; it is never parsed.
type StageError struct {
	Stage      string
	Diagnostic string
	Err        error
}

func (e *StageError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %s", e.Stage, e.Diagnostic)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// maxDiagnosticBytes bounds how much stderr is kept per stage.
const maxDiagnosticBytes = 64 * 1024

// FFmpegRunner runs stages with an ffmpeg binary and tracks running
// processes so they can be killed on shutdown.
type FFmpegRunner struct {
	binary  string
	timeout time.Duration

	processes map[*exec.Cmd]string
	processMu sync.Mutex
}

// NewFFmpegRunner creates a runner. A zero timeout disables the per-stage
// deadline.
func NewFFmpegRunner(binary string, timeout time.Duration) *FFmpegRunner {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegRunner{
		binary:    binary,
		timeout:   timeout,
		processes: make(map[*exec.Cmd]string),
	}
}

// Binary returns the ffmpeg executable this runner invokes.
func (r *FFmpegRunner) Binary() string {
	return r.binary
}

// Command implements Runner.
func (r *FFmpegRunner) Command(stage Stage) []string {
	argv := []string{
		r.binary,
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nostdin",
		"-progress", "pipe:1",
		"-y",
	}
	return append(argv, stage.Args...)
}

// Run implements Runner.
func (r *FFmpegRunner) Run(ctx context.Context, stage Stage, progress ProgressFunc) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	argv := r.Command(stage)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StageError{Stage: stage.Name, Err: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}

	stderr := &tailBuffer{limit: maxDiagnosticBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return &StageError{Stage: stage.Name, Err: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}

	r.track(cmd, stage.Output)
	defer r.untrack(cmd)

	readProgress(stdout, stage.Duration, progress)

	if err := cmd.Wait(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &StageError{
				Stage:      stage.Name,
				Diagnostic: strings.TrimSpace(fmt.Sprintf("timed out after %v. %s", r.timeout, diag)),
				Err:        ctx.Err(),
			}
		}
		if ctx.Err() != nil {
			return &StageError{Stage: stage.Name, Diagnostic: diag, Err: ctx.Err()}
		}
		return &StageError{Stage: stage.Name, Diagnostic: diag, Err: err}
	}

	return nil
}

func (r *FFmpegRunner) track(cmd *exec.Cmd, output string) {
	r.processMu.Lock()
	r.processes[cmd] = output
	r.processMu.Unlock()
}

func (r *FFmpegRunner) untrack(cmd *exec.Cmd) {
	r.processMu.Lock()
	delete(r.processes, cmd)
	r.processMu.Unlock()
}

// Running returns the number of ffmpeg processes currently running.
func (r *FFmpegRunner) Running() int {
	r.processMu.Lock()
	defer r.processMu.Unlock()
	return len(r.processes)
}

// Cleanup kills all running ffmpeg processes.
func (r *FFmpegRunner) Cleanup() {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	for cmd, output := range r.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process writing %s", output)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", output, err)
			}
		}
	}
}

// readProgress consumes ffmpeg's -progress key=value stream until EOF.
// Percentages are derived from out_time_us against the expected duration;
// "progress=end" always reports 100.
func readProgress(r io.Reader, total time.Duration, progress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	last := -1.0

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || progress == nil {
			continue
		}

		switch key {
		case "out_time_us", "out_time_ms":
			// out_time_ms is also reported in microseconds by ffmpeg
			if total <= 0 {
				continue
			}
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			pct := float64(us) / float64(total.Microseconds()) * 100
			if pct > 100 {
				pct = 100
			}
			// Whole-percent steps only
			if pct-last >= 1 {
				last = pct
				progress(pct)
			}
		case "progress":
			if value == "end" && last < 100 {
				last = 100
				progress(100)
			}
		}
	}

	// Drain whatever is left so ffmpeg never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
