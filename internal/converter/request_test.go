package converter

import (
	"context"
	"errors"
	"testing"
	"time"

	"anim-converter/internal/encoder"
	"anim-converter/internal/frames"
)

func TestRequestValidate(t *testing.T) {
	oneFrame := []frames.Upload{{Name: "a.png", Path: "/tmp/a.png"}}

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"video gif", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: 30, Format: encoder.FormatGIF}, false},
		{"frames webm", Request{Frames: oneFrame, Mode: ModeTransparentVideo, FPS: 10, Format: encoder.FormatWebM}, false},
		{"explicit size", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: 30, Format: encoder.FormatGIF, Size: 480}, false},
		{"both inputs", Request{Video: "/v.mp4", Frames: oneFrame, Mode: ModeGIF, FPS: 30, Format: encoder.FormatGIF}, true},
		{"no input", Request{Mode: ModeGIF, FPS: 30, Format: encoder.FormatGIF}, true},
		{"empty frames", Request{Frames: []frames.Upload{}, Mode: ModeGIF, FPS: 30, Format: encoder.FormatGIF}, true},
		{"bad format", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: 30, Format: "mp4"}, true},
		{"mode mismatch", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: 30, Format: encoder.FormatAVI}, true},
		{"zero fps", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: 0, Format: encoder.FormatGIF}, true},
		{"fps too high", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: MaxFPS + 1, Format: encoder.FormatGIF}, true},
		{"size too small", Request{Video: "/v.mp4", Mode: ModeGIF, FPS: 30, Format: encoder.FormatGIF, Size: 4}, true},
		{"frame without path", Request{Frames: []frames.Upload{{Name: "a.png"}}, Mode: ModeGIF, FPS: 10, Format: encoder.FormatGIF}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("error should wrap ErrInvalidRequest: %v", err)
			}
		})
	}
}

func TestRequestValidateFrameSequences(t *testing.T) {
	populated := Request{
		Frames: []frames.Upload{{Name: "a.png", Path: "/x/a.png"}, {Name: "b.png", Path: "/x/b.png"}},
		Mode:   ModeGIF,
		Format: encoder.FormatGIF,
		FPS:    10,
	}
	if err := populated.Validate(); err != nil {
		t.Errorf("populated frame list rejected: %v", err)
	}

	empty := populated
	empty.Frames = []frames.Upload{}
	if err := empty.Validate(); !errors.Is(err, frames.ErrNoFrames) {
		t.Errorf("empty frame list: err = %v, want ErrNoFrames", err)
	}
}

func TestModeFor(t *testing.T) {
	if ModeFor(encoder.FormatGIF) != ModeGIF {
		t.Error("gif should map to ModeGIF")
	}
	if ModeFor(encoder.FormatAVI) != ModeTransparentVideo || ModeFor(encoder.FormatWebM) != ModeTransparentVideo {
		t.Error("video containers should map to ModeTransparentVideo")
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(2)
	if l.Capacity() != 2 {
		t.Fatalf("Capacity() = %d", l.Capacity())
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if l.InUse() != 2 {
		t.Errorf("InUse() = %d, want 2", l.InUse())
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(short); !errors.Is(err, ErrNoSlot) {
		t.Errorf("Acquire() on a full limiter = %v, want ErrNoSlot", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()

	l.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("waiting Acquire() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Release() did not wake a waiter")
	}
}

func TestNewLimiterMinimum(t *testing.T) {
	if NewLimiter(0).Capacity() != 1 {
		t.Error("a limiter always has at least one slot")
	}
}
