package frames

import (
	"fmt"
	"image"
	"os"

	// Frame header decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp" // WebP frame support
)

// CheckOrdering reports when byte-wise order disagrees with the order a
// human would expect from the numbers in the names (frame2 before frame10).
// It never changes the order; the returned warning is informational.
func CheckOrdering(ordered []Upload) []string {
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1].Name, ordered[i].Name
		if naturalLess(cur, prev) {
			return []string{fmt.Sprintf(
				"frame names sort differently as text and as numbers (%q is placed before %q); zero-pad frame numbers to get the intended order",
				prev, cur,
			)}
		}
	}
	return nil
}

// naturalLess compares strings treating runs of ASCII digits as numbers.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na, nb := trimZeros(a[si:i]), trimZeros(b[sj:j])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

// ProbeFrames decodes the header of each staged frame and reports frames
// that cannot be decoded or whose dimensions differ from the first frame.
// ffmpeg may still accept such frames, so nothing here is fatal.
func ProbeFrames(frames []StagedFrame) []string {
	var warnings []string
	var first image.Config
	haveFirst := false

	for _, f := range frames {
		cfg, err := decodeConfig(f.Path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("frame %d: header not readable (%v)", f.Index, err))
			continue
		}
		if !haveFirst {
			first = cfg
			haveFirst = true
			continue
		}
		if cfg.Width != first.Width || cfg.Height != first.Height {
			warnings = append(warnings, fmt.Sprintf(
				"frame %d is %dx%d but earlier frames are %dx%d",
				f.Index, cfg.Width, cfg.Height, first.Width, first.Height,
			))
			// One mismatch is enough to explain a distorted result
			break
		}
	}

	return warnings
}

func decodeConfig(path string) (image.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer func() {
		_ = file.Close()
	}()

	cfg, _, err := image.DecodeConfig(file)
	return cfg, err
}
