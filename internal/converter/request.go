package converter

import (
	"errors"
	"fmt"

	"anim-converter/internal/encoder"
	"anim-converter/internal/frames"
)

// Mode selects the family of output.
type Mode string

// Output modes.
const (
	ModeGIF              Mode = "gif"
	ModeTransparentVideo Mode = "transparent-video"
)

// Request limits.
const (
	MaxFPS  = 60
	MinSize = 16
	MaxSize = 2048
)

// ErrInvalidRequest wraps every validation failure.
var ErrInvalidRequest = errors.New("invalid conversion request")

// Request is one conversion. Exactly one of Video and Frames is set. Paths
// point at files the upload collaborator already wrote to scratch space.
type Request struct {
	Video  string
	Frames []frames.Upload

	Mode        Mode
	Transparent bool
	FPS         int
	Format      encoder.Format

	// Size is the square canvas edge for video input. Zero selects the
	// converter default.
	Size int
}

// ModeFor returns the mode implied by an output format.
func ModeFor(format encoder.Format) Mode {
	if format == encoder.FormatGIF {
		return ModeGIF
	}
	return ModeTransparentVideo
}

// Validate checks the request without touching the filesystem.
func (r Request) Validate() error {
	hasVideo := r.Video != ""
	hasFrames := len(r.Frames) > 0

	switch {
	case hasVideo && hasFrames:
		return fmt.Errorf("%w: both a video and frames were supplied", ErrInvalidRequest)
	case !hasVideo && !hasFrames && r.Frames != nil:
		return fmt.Errorf("%w: %w", ErrInvalidRequest, frames.ErrNoFrames)
	case !hasVideo && !hasFrames:
		return fmt.Errorf("%w: no video or frames supplied", ErrInvalidRequest)
	}

	if _, err := encoder.ParseFormat(string(r.Format)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if r.Mode != ModeFor(r.Format) {
		return fmt.Errorf("%w: mode %q does not match format %q", ErrInvalidRequest, r.Mode, r.Format)
	}

	if r.FPS <= 0 || r.FPS > MaxFPS {
		return fmt.Errorf("%w: fps must be between 1 and %d, got %d", ErrInvalidRequest, MaxFPS, r.FPS)
	}

	if r.Size != 0 && (r.Size < MinSize || r.Size > MaxSize) {
		return fmt.Errorf("%w: size must be between %d and %d, got %d", ErrInvalidRequest, MinSize, MaxSize, r.Size)
	}

	for i, f := range r.Frames {
		if f.Path == "" {
			return fmt.Errorf("%w: frame %d has no path", ErrInvalidRequest, i)
		}
	}

	return nil
}
