package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"anim-converter/internal/filesystem"
	"anim-converter/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a single write or the whole delivery
	// exceeded its deadline, typically because the client reads too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream
	// completed. This is detected via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the writer was closed while a write
	// was pending.
	ErrStreamCanceled = errors.New("stream canceled")

	// ErrArtifactUnavailable indicates the artifact could not be opened or
	// stat'ed. Deliver has written nothing, so the caller can still send an
	// error response.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
)

// Config configures artifact delivery.
type Config struct {
	// WriteTimeout is the maximum time to wait for a single chunk.
	WriteTimeout time.Duration
	// MaxDuration is the absolute maximum delivery duration (0 = unlimited).
	MaxDuration time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received).
	ChunkSize int
}

// DefaultConfig returns the delivery defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		MaxDuration:  10 * time.Minute,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so a stalled client cannot pin
// a handler (and its scratch files) forever.
type TimeoutWriter struct {
	w       http.ResponseWriter
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config
	flusher http.Flusher
	start   time.Time

	mu      sync.Mutex
	written int64
	closed  bool
}

// NewTimeoutWriter creates a new timeout-protected writer.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)

	tw := &TimeoutWriter{
		w:      w,
		ctx:    writerCtx,
		cancel: cancel,
		config: config,
		start:  time.Now(),
	}

	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	return tw
}

// Write implements io.Writer with timeout protection.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	total := 0
	for len(p) > 0 {
		if err := tw.ctx.Err(); err != nil {
			return total, tw.contextError()
		}
		if tw.config.MaxDuration > 0 && time.Since(tw.start) > tw.config.MaxDuration {
			return total, ErrWriteTimeout
		}

		chunk := p
		if tw.config.ChunkSize > 0 && len(chunk) > tw.config.ChunkSize {
			chunk = p[:tw.config.ChunkSize]
		}

		n, err := tw.writeChunk(chunk)
		total += n
		if err != nil {
			return total, err
		}
		p = p[len(chunk):]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}

	return total, nil
}

// writeChunk performs a single write bounded by WriteTimeout.
func (tw *TimeoutWriter) writeChunk(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	var timeout <-chan time.Time
	if tw.config.WriteTimeout > 0 {
		timer := time.NewTimer(tw.config.WriteTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case result := <-resultCh:
		tw.mu.Lock()
		tw.written += int64(result.n)
		tw.mu.Unlock()
		return result.n, result.err

	case <-timeout:
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

// contextError maps the writer context state to a sentinel error.
func (tw *TimeoutWriter) contextError() error {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()

	if !closed && errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed. Safe to call more than once.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel()
	return nil
}

// Stats returns bytes written and elapsed time.
func (tw *TimeoutWriter) Stats() (int64, time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written, time.Since(tw.start)
}

// Artifact describes a finished file to send to the client.
type Artifact struct {
	Path        string
	ContentType string
	// Filename is offered to the client in Content-Disposition.
	Filename string
}

// Deliver streams an artifact as the response body with its headers. Extra
// headers must already be set on w. It returns the number of body bytes
// written. Errors wrapping ErrArtifactUnavailable happen before anything is
// written; any other error comes after the 200 header was sent and only
// matters for logging and cleanup.
func Deliver(ctx context.Context, w http.ResponseWriter, a Artifact, config Config) (int64, error) {
	f, err := filesystem.OpenWithRetry(a.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: open: %w", ErrArtifactUnavailable, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close artifact %s: %v", a.Path, err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat: %w", ErrArtifactUnavailable, err)
	}

	h := w.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-store")
	if a.Filename != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	}
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err = io.Copy(tw, f)

	written, duration := tw.Stats()
	logging.Debug("Delivered %s: %d of %d bytes in %v", a.Filename, written, info.Size(), duration)

	if err == nil && written != info.Size() {
		err = io.ErrShortWrite
	}
	return written, err
}
