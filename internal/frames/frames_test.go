package frames

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"anim-converter/internal/workspace"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 128})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newScratch(t *testing.T) (*workspace.Manager, *workspace.ResourceSet) {
	t.Helper()
	m, err := workspace.NewManager(filepath.Join(t.TempDir(), "scratch"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return m, m.NewRequest()
}

func TestOrder(t *testing.T) {
	uploads := []Upload{
		{Name: "b.png", Path: "/up/1"},
		{Name: "a.png", Path: "/up/2"},
		{Name: "c.png", Path: "/up/3"},
	}

	ordered := Order(uploads)

	want := []string{"a.png", "b.png", "c.png"}
	for i, name := range want {
		if ordered[i].Name != name {
			t.Errorf("ordered[%d] = %s, want %s", i, ordered[i].Name, name)
		}
	}
	if uploads[0].Name != "b.png" {
		t.Error("Order() must not modify its input")
	}
}

func TestOrderIsByteWise(t *testing.T) {
	uploads := []Upload{
		{Name: "frame10.png"},
		{Name: "Frame1.png"},
		{Name: "frame2.png"},
		{Name: "frame1.png"},
	}

	ordered := Order(uploads)

	// Upper-case sorts before lower-case, digits compare as characters
	want := []string{"Frame1.png", "frame1.png", "frame10.png", "frame2.png"}
	for i, name := range want {
		if ordered[i].Name != name {
			t.Errorf("ordered[%d] = %s, want %s", i, ordered[i].Name, name)
		}
	}
}

func TestStagedName(t *testing.T) {
	tests := []struct {
		index int
		ext   string
		want  string
	}{
		{0, ".png", "frame_00000.png"},
		{7, ".jpg", "frame_00007.jpg"},
		{12345, ".png", "frame_12345.png"},
	}

	for _, tt := range tests {
		if got := StagedName(tt.index, tt.ext); got != tt.want {
			t.Errorf("StagedName(%d, %q) = %q, want %q", tt.index, tt.ext, got, tt.want)
		}
	}
}

func TestStageOrdersAndCopies(t *testing.T) {
	m, rs := newScratch(t)
	src := t.TempDir()

	names := []string{"b.png", "a.png", "c.png"}
	var uploads []Upload
	for i, name := range names {
		p := filepath.Join(src, name)
		writePNG(t, p, 4+i, 4)
		uploads = append(uploads, Upload{Name: name, Path: p})
	}

	staged, err := Stage(context.Background(), rs, uploads)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	if filepath.Dir(staged.Dir) != m.BaseDir() {
		t.Errorf("staging dir %s is not under scratch base %s", staged.Dir, m.BaseDir())
	}
	if staged.Normalized {
		t.Error("uniform extensions should not be normalized")
	}
	if staged.Ext != ".png" {
		t.Errorf("Ext = %q, want .png", staged.Ext)
	}

	wantSource := map[int]string{0: "a.png", 1: "b.png", 2: "c.png"}
	for i, f := range staged.Frames {
		if f.Index != i {
			t.Errorf("frame %d has Index %d, indices must be contiguous from 0", i, f.Index)
		}
		if filepath.Base(f.Source) != wantSource[i] {
			t.Errorf("frame %d source = %s, want %s", i, filepath.Base(f.Source), wantSource[i])
		}
		if filepath.Base(f.Path) != StagedName(i, ".png") {
			t.Errorf("frame %d path = %s, want %s", i, filepath.Base(f.Path), StagedName(i, ".png"))
		}
		orig, _ := os.ReadFile(f.Source)
		copied, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatalf("staged frame missing: %v", err)
		}
		if !bytes.Equal(orig, copied) {
			t.Errorf("frame %d content differs from its source", i)
		}
	}

	// Originals are copied, not moved
	for _, up := range uploads {
		if _, err := os.Stat(up.Path); err != nil {
			t.Errorf("original upload %s was removed: %v", up.Path, err)
		}
	}

	if want := filepath.Join(staged.Dir, "frame_%05d.png"); staged.Pattern() != want {
		t.Errorf("Pattern() = %s, want %s", staged.Pattern(), want)
	}

	rs.ReleaseAll()
	entries, _ := os.ReadDir(m.BaseDir())
	if len(entries) != 0 {
		t.Errorf("scratch not empty after release: %d entries", len(entries))
	}
}

func TestStageNormalizesMixedFormats(t *testing.T) {
	_, rs := newScratch(t)
	src := t.TempDir()

	pngPath := filepath.Join(src, "0.png")
	jpgPath := filepath.Join(src, "1.jpg")
	writePNG(t, pngPath, 8, 8)
	writeJPEG(t, jpgPath, 8, 8)

	staged, err := Stage(context.Background(), rs, []Upload{
		{Name: "1.jpg", Path: jpgPath},
		{Name: "0.png", Path: pngPath},
	})
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	defer rs.ReleaseAll()

	if !staged.Normalized {
		t.Error("mixed extensions should be normalized")
	}
	for _, f := range staged.Frames {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			t.Fatal(err)
		}
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "png" {
			t.Errorf("frame %d: format = %q, err = %v; want png", f.Index, format, err)
		}
	}
}

func TestStageErrors(t *testing.T) {
	t.Run("no frames", func(t *testing.T) {
		m, rs := newScratch(t)
		_, err := Stage(context.Background(), rs, nil)
		if !errors.Is(err, ErrNoFrames) {
			t.Fatalf("err = %v, want ErrNoFrames", err)
		}
		entries, _ := os.ReadDir(m.BaseDir())
		if len(entries) != 0 {
			t.Error("rejected request must not touch the filesystem")
		}
	})

	t.Run("directory collision", func(t *testing.T) {
		_, rs := newScratch(t)
		if _, err := rs.MkdirUnique("frames"); err != nil {
			t.Fatal(err)
		}
		defer rs.ReleaseAll()

		_, err := Stage(context.Background(), rs, []Upload{{Name: "a.png", Path: "/nonexistent"}})
		if !errors.Is(err, ErrStaging) {
			t.Fatalf("err = %v, want ErrStaging", err)
		}
	})

	t.Run("missing source leaves partial staging registered", func(t *testing.T) {
		m, rs := newScratch(t)
		src := t.TempDir()
		good := filepath.Join(src, "a.png")
		writePNG(t, good, 2, 2)

		_, err := Stage(context.Background(), rs, []Upload{
			{Name: "a.png", Path: good},
			{Name: "b.png", Path: filepath.Join(src, "missing.png")},
		})
		if !errors.Is(err, ErrStaging) {
			t.Fatalf("err = %v, want ErrStaging", err)
		}
		if !strings.Contains(err.Error(), "b.png") {
			t.Errorf("error should name the failing frame: %v", err)
		}

		rs.ReleaseAll()
		entries, _ := os.ReadDir(m.BaseDir())
		if len(entries) != 0 {
			t.Errorf("partial staging not released: %d entries", len(entries))
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		_, rs := newScratch(t)
		defer rs.ReleaseAll()
		src := t.TempDir()
		p := filepath.Join(src, "a.png")
		writePNG(t, p, 2, 2)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Stage(ctx, rs, []Upload{{Name: "a.png", Path: p}}); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func TestCheckOrdering(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		warn  bool
	}{
		{"zero padded", []string{"frame000.png", "frame001.png", "frame002.png"}, false},
		{"letters", []string{"a.png", "b.png", "c.png"}, false},
		{"unpadded numbers", []string{"frame1.png", "frame10.png", "frame2.png"}, true},
		{"single frame", []string{"x.png"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var uploads []Upload
			for _, n := range tt.names {
				uploads = append(uploads, Upload{Name: n})
			}
			warnings := CheckOrdering(Order(uploads))
			if (len(warnings) > 0) != tt.warn {
				t.Errorf("CheckOrdering(%v) warnings = %v, want warning=%v", tt.names, warnings, tt.warn)
			}
		})
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"frame2", "frame10", true},
		{"frame10", "frame2", false},
		{"frame002", "frame10", true},
		{"a", "b", true},
		{"a", "a", false},
		{"a", "ab", true},
		{"img01", "img1", false},
	}

	for _, tt := range tests {
		if got := naturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("naturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestProbeFrames(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	c := filepath.Join(dir, "c.png")
	bad := filepath.Join(dir, "bad.png")
	writePNG(t, a, 10, 10)
	writePNG(t, b, 10, 10)
	writePNG(t, c, 20, 10)
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("consistent", func(t *testing.T) {
		warnings := ProbeFrames([]StagedFrame{{Index: 0, Path: a}, {Index: 1, Path: b}})
		if len(warnings) != 0 {
			t.Errorf("warnings = %v, want none", warnings)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		warnings := ProbeFrames([]StagedFrame{{Index: 0, Path: a}, {Index: 1, Path: c}})
		if len(warnings) != 1 || !strings.Contains(warnings[0], "20x10") {
			t.Errorf("warnings = %v, want one size mismatch", warnings)
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		warnings := ProbeFrames([]StagedFrame{{Index: 0, Path: bad}, {Index: 1, Path: a}})
		if len(warnings) != 1 || !strings.Contains(warnings[0], "frame 0") {
			t.Errorf("warnings = %v, want one for frame 0", warnings)
		}
	})

	t.Run("first decodable frame sets the size", func(t *testing.T) {
		missing := filepath.Join(dir, "missing.png")
		warnings := ProbeFrames([]StagedFrame{
			{Index: 0, Path: bad},
			{Index: 1, Path: missing},
			{Index: 2, Path: a},
			{Index: 3, Path: c},
		})
		if len(warnings) != 3 {
			t.Fatalf("warnings = %v, want 3", warnings)
		}
		if !strings.Contains(warnings[2], "frame 3 is 20x10 but earlier frames are 10x10") {
			t.Errorf("warnings[2] = %q, want frame 3 compared against frame 2", warnings[2])
		}
	})
}
