package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anim-converter/internal/encoder"
)

// fakeFFmpeg writes a shell script that answers -encoders with an empty
// list and otherwise copies a small GIF to its last argument, unless fail
// is set.
func fakeFFmpeg(t *testing.T, fail bool) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.gif")
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, &gif.GIF{Image: []*image.Paletted{img}, Delay: []int{10}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fixture, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	action := fmt.Sprintf("cp '%s' \"$last\"", fixture)
	if fail {
		action = `echo "Conversion failed!" >&2; exit 1`
	}

	script := filepath.Join(dir, "ffmpeg")
	body := fmt.Sprintf(`#!/bin/sh
case "$*" in *-encoders*) exit 0 ;; esac
for last; do :; done
%s
`, action)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return script
}

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func writeFrames(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("frame"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%s not empty: %d entries", dir, len(entries))
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := [][]string{
		nil,
		{"video"},
		{"video", "in.mp4"},
		{"video", "in.mp4", "out.gif", "extra"},
		{"frames", "out.gif"},
		{"transcode", "x"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), args, envFrom(nil), &stdout, &stderr, false)
			if code != 2 {
				t.Errorf("exit code = %d, want 2", code)
			}
			if !strings.Contains(stderr.String(), "Usage:") {
				t.Errorf("usage not printed: %q", stderr.String())
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"help"}, envFrom(nil), &stdout, &stderr, false); code != 0 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "animconv frames") {
		t.Error("help should go to stdout")
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		out     string
		want    options
		wantErr bool
	}{
		{
			name: "defaults from extension",
			out:  "clip.webm",
			want: options{fps: 30, format: encoder.FormatWebM, ffmpegPath: "ffmpeg"},
		},
		{
			name: "no extension means gif",
			out:  "animation",
			want: options{fps: 30, format: encoder.FormatGIF, ffmpegPath: "ffmpeg"},
		},
		{
			name: "env overrides",
			env:  map[string]string{"FPS": "12", "TRANSPARENT": "true", "FORMAT": "AVI", "SCRATCH_DIR": "/scratch", "FFMPEG_PATH": "/opt/ffmpeg"},
			out:  "out.gif",
			want: options{fps: 12, transparent: true, format: encoder.FormatAVI, scratchDir: "/scratch", ffmpegPath: "/opt/ffmpeg"},
		},
		{name: "bad fps", env: map[string]string{"FPS": "quick"}, out: "a.gif", wantErr: true},
		{name: "bad transparent", env: map[string]string{"TRANSPARENT": "sometimes"}, out: "a.gif", wantErr: true},
		{name: "unknown extension", out: "a.mp4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(envFrom(tt.env), tt.out, 30)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.want.scratchDir == "" {
				tt.want.scratchDir = filepath.Join(os.TempDir(), "animconv")
			}
			if got != tt.want {
				t.Errorf("parseOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRunFrames(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, false)
	scratch := t.TempDir()
	out := filepath.Join(t.TempDir(), "anim.gif")
	frames := writeFrames(t, "b.png", "a.png", "c.png")

	var stdout, stderr bytes.Buffer
	args := append([]string{"frames", out}, frames...)
	code := run(context.Background(), args, envFrom(map[string]string{
		"FFMPEG_PATH": ffmpeg,
		"SCRATCH_DIR": scratch,
		"TRANSPARENT": "true",
	}), &stdout, &stderr, false)

	if code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := gif.DecodeConfig(f); err != nil {
		t.Errorf("output is not a GIF: %v", err)
	}

	if !strings.Contains(stdout.String(), "Wrote "+out) {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "palettegen: started") {
		t.Errorf("non-terminal output should list stages: %q", stdout.String())
	}
	assertDirEmpty(t, scratch)
}

func TestRunEngineFailure(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, true)
	scratch := t.TempDir()
	out := filepath.Join(t.TempDir(), "anim.gif")
	frames := writeFrames(t, "a.png", "b.png")

	var stdout, stderr bytes.Buffer
	args := append([]string{"frames", out}, frames...)
	code := run(context.Background(), args, envFrom(map[string]string{
		"FFMPEG_PATH": ffmpeg,
		"SCRATCH_DIR": scratch,
	}), &stdout, &stderr, false)

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Conversion failed!") {
		t.Errorf("engine diagnostic missing from stderr: %q", stderr.String())
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Error("no output should be written on failure")
	}
	for _, f := range frames {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("input frame %s was removed", f)
		}
	}
	assertDirEmpty(t, scratch)
}

func TestProgressPrinterTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{w: &buf, tty: true}
	stage := encoder.Stage{Name: encoder.StageEncode}

	p.StageStarted(stage, nil)
	p.StageProgress(stage, 10)
	p.StageProgress(stage, 10.4)
	p.StageProgress(stage, 55)
	p.StageFinished(stage, 1500*time.Millisecond, nil)

	got := buf.String()
	if strings.Count(got, "encode:  10%") != 1 {
		t.Errorf("repeated percentage should be drawn once: %q", got)
	}
	if !strings.Contains(got, "\rencode:  55%") {
		t.Errorf("progress should redraw with carriage return: %q", got)
	}
	if !strings.HasSuffix(got, "encode: done in 1.5s\n") {
		t.Errorf("finish line = %q", got)
	}
}

func TestProgressPrinterPlain(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{w: &buf}
	stage := encoder.Stage{Name: encoder.StagePaletteUse}

	p.StageStarted(stage, nil)
	p.StageProgress(stage, 50)
	p.StageFinished(stage, time.Second, errors.New("exit status 1"))

	want := "paletteuse: started\npaletteuse: failed in 1s\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if strings.Contains(buf.String(), "\r") {
		t.Error("carriage returns must not be written when stdout is not a terminal")
	}
}

func TestCopyArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.gif")
	if err := os.WriteFile(src, []byte("GIF89a"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "dst.gif")
	if err := copyArtifact(src, dst); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "GIF89a" {
		t.Errorf("copied %q", data)
	}

	if err := copyArtifact(filepath.Join(dir, "missing"), filepath.Join(dir, "other.gif")); err == nil {
		t.Error("expected error for missing source")
	}
	if err := copyArtifact(src, filepath.Join(dir, "no", "such", "dir.gif")); err == nil {
		t.Error("expected error for unwritable destination")
	}
}

func TestSanitizeCommand(t *testing.T) {
	tests := map[string]string{
		"frames":         "frames",
		"My_Command-v2":  "My_Command-v2",
		"rm -rf /":       "rm_-rf__",
		"\x1b[31mred":    "__31mred",
		"line\nbreak":    "line_break",
		"ünïcode":        "_n_code",
	}
	for in, want := range tests {
		if got := sanitizeCommand(in); got != want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunEncoders(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	script := filepath.Join(t.TempDir(), "ffmpeg")
	body := `#!/bin/sh
cat <<'LIST'
Encoders:
 V..... = Video
 ------
 V....D gif                  GIF (Graphics Interchange Format)
 VFS... mjpeg                MJPEG (Motion JPEG)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
LIST
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	env := envFrom(map[string]string{"FFMPEG_PATH": script})
	if code := run(context.Background(), []string{"encoders"}, env, &stdout, &stderr, false); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"Format", "webm", "libvpx-vp9", "mjpeg", "falls back to opaque"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunEncodersProbeFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env := envFrom(map[string]string{"FFMPEG_PATH": filepath.Join(t.TempDir(), "missing-ffmpeg")})
	if code := run(context.Background(), []string{"encoders"}, env, &stdout, &stderr, false); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRenderEncoderTable(t *testing.T) {
	out := renderEncoderTable([]encoder.EncoderChoice{
		{Format: encoder.FormatGIF, Opaque: "gif", Alpha: "gif"},
		{Format: encoder.FormatAVI},
	})

	if !strings.Contains(out, "(ffmpeg default)") {
		t.Errorf("missing opaque default marker:\n%s", out)
	}
	if !strings.Contains(out, "Transparent") || strings.Contains(out, "TRANSPARENT") {
		t.Errorf("headers should keep their case:\n%s", out)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 6 {
		t.Errorf("table has %d lines, want 6:\n%s", len(lines), out)
	}
}
