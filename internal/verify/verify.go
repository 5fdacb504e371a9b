package verify

import (
	"errors"
	"fmt"
	"image/gif"

	"anim-converter/internal/encoder"
	"anim-converter/internal/filesystem"
)

var (
	// ErrNotProduced is returned when the artifact is missing or empty.
	ErrNotProduced = errors.New("artifact not produced")
	// ErrInvalid is returned when the artifact exists but cannot be decoded.
	ErrInvalid = errors.New("artifact invalid")
)

// Artifact checks that the encoder left a usable file at path and returns
// its size in bytes.
func Artifact(path string, format encoder.Format) (int64, error) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotProduced, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrNotProduced, path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s is empty", ErrNotProduced, path)
	}

	if format == encoder.FormatGIF {
		if err := checkGIF(path); err != nil {
			return 0, err
		}
	}

	return info.Size(), nil
}

func checkGIF(path string) error {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotProduced, err)
	}
	defer f.Close()

	cfg, err := gif.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: zero-sized gif", ErrInvalid)
	}
	return nil
}
