package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"anim-converter/internal/logging"

	"github.com/disintegration/imaging"
)

// Sentinel errors for frame staging.
var (
	// ErrNoFrames is returned when a frame-sequence request carries no frames.
	ErrNoFrames = errors.New("no frames supplied")

	// ErrStaging wraps every directory or copy failure during staging.
	ErrStaging = errors.New("frame staging failed")
)

const (
	// NamePrefix is the fixed prefix of every staged frame name.
	NamePrefix = "frame_"
	// IndexWidth is the zero-padded width of the staged frame index.
	IndexWidth = 5
	// normalizedExt is used when uploads do not share a single extension.
	normalizedExt = ".png"
)

// Upload is one uploaded frame: the client's original filename and where the
// upload collaborator stored it.
type Upload struct {
	Name string
	Path string
}

// StagedFrame is an upload copied into the staging directory under its
// canonical sequence name.
type StagedFrame struct {
	Index  int
	Source string
	Path   string
}

// Staged is the result of staging a frame set.
type Staged struct {
	Dir        string
	Frames     []StagedFrame
	Ext        string
	Normalized bool
}

// Pattern returns the printf-style sequence pattern ffmpeg's image2 demuxer
// expects, e.g. /scratch/<id>-frames/frame_%05d.png.
func (s *Staged) Pattern() string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s%%0%dd%s", NamePrefix, IndexWidth, s.Ext))
}

// Scratch creates request-namespaced directories that are released with the
// rest of the request. *workspace.ResourceSet satisfies it.
type Scratch interface {
	MkdirUnique(name string) (string, error)
}

// StagedName returns the canonical file name for a frame index.
func StagedName(index int, ext string) string {
	return fmt.Sprintf("%s%0*d%s", NamePrefix, IndexWidth, index, ext)
}

// Order returns the uploads sorted by original filename using byte-wise
// comparison. ffmpeg consumes frames by position, so this order is the
// playback order. The input slice is not modified.
func Order(uploads []Upload) []Upload {
	ordered := make([]Upload, len(uploads))
	copy(ordered, uploads)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})
	return ordered
}

// Stage orders the uploads and copies them into a fresh staging directory
// obtained from scratch. The directory is registered before any copy starts,
// so a failure part way through leaves nothing that ReleaseAll will miss.
func Stage(ctx context.Context, scratch Scratch, uploads []Upload) (*Staged, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFrames
	}

	dir, err := scratch.MkdirUnique("frames")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}

	ordered := Order(uploads)
	ext, uniform := commonExt(ordered)

	staged := &Staged{
		Dir:        dir,
		Frames:     make([]StagedFrame, 0, len(ordered)),
		Ext:        ext,
		Normalized: !uniform,
	}

	if !uniform {
		logging.Debug("Frames have mixed extensions, normalizing %d frames to PNG", len(ordered))
	}

	for i, up := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStaging, err)
		}

		dst := filepath.Join(dir, StagedName(i, ext))
		if uniform {
			err = copyFile(up.Path, dst)
		} else {
			err = normalizeFrame(up.Path, dst)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q: %w", ErrStaging, up.Name, err)
		}

		staged.Frames = append(staged.Frames, StagedFrame{
			Index:  i,
			Source: up.Path,
			Path:   dst,
		})
	}

	return staged, nil
}

// commonExt returns the shared lower-cased extension of the uploads, or the
// PNG extension and false when they differ or one has none.
func commonExt(uploads []Upload) (string, bool) {
	var ext string
	for i, up := range uploads {
		e := strings.ToLower(filepath.Ext(up.Name))
		if e == "" {
			return normalizedExt, false
		}
		if i == 0 {
			ext = e
			continue
		}
		if e != ext {
			return normalizedExt, false
		}
	}
	return ext, true
}

// copyFile streams src to dst. The source is left in place; it belongs to
// the upload collaborator and is released separately.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			logging.Warn("failed to close frame %s: %v", src, err)
		}
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// normalizeFrame decodes src in whatever format it is and writes it to dst
// as PNG, keeping any alpha channel.
func normalizeFrame(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := imaging.Save(img, dst); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
