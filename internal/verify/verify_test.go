package verify

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"anim-converter/internal/encoder"
)

func writeGIF(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	if err := gif.EncodeAll(f, &gif.GIF{Image: []*image.Paletted{img}, Delay: []int{10}}); err != nil {
		t.Fatal(err)
	}
}

func TestArtifact(t *testing.T) {
	dir := t.TempDir()

	validGIF := filepath.Join(dir, "ok.gif")
	writeGIF(t, validGIF)

	empty := filepath.Join(dir, "empty.gif")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	garbage := filepath.Join(dir, "garbage.gif")
	if err := os.WriteFile(garbage, []byte("not a gif at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	webm := filepath.Join(dir, "out.webm")
	if err := os.WriteFile(webm, []byte{0x1a, 0x45, 0xdf, 0xa3}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		format   encoder.Format
		wantSize bool
		wantErr  error
	}{
		{"valid gif", validGIF, encoder.FormatGIF, true, nil},
		{"missing", filepath.Join(dir, "missing.gif"), encoder.FormatGIF, false, ErrNotProduced},
		{"empty", empty, encoder.FormatGIF, false, ErrNotProduced},
		{"directory", dir, encoder.FormatWebM, false, ErrNotProduced},
		{"undecodable gif", garbage, encoder.FormatGIF, false, ErrInvalid},
		{"video container is size-checked only", webm, encoder.FormatWebM, true, nil},
		{"garbage avi passes", garbage, encoder.FormatAVI, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := Artifact(tt.path, tt.format)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Artifact() error = %v, want %v", err, tt.wantErr)
				}
				if size != 0 {
					t.Errorf("size = %d on failure", size)
				}
				return
			}
			if err != nil {
				t.Fatalf("Artifact() error = %v", err)
			}
			if tt.wantSize && size <= 0 {
				t.Errorf("size = %d, want > 0", size)
			}
		})
	}
}

func TestArtifactMessage(t *testing.T) {
	_, err := Artifact(filepath.Join(t.TempDir(), "nope.gif"), encoder.FormatGIF)
	if err == nil || !strings.HasPrefix(err.Error(), "artifact not produced") {
		t.Errorf("error = %v, want prefix %q", err, "artifact not produced")
	}
}
