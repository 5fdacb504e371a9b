package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Capabilities is the set of encoders an ffmpeg build provides. The zero
// value means "unknown" and reports every encoder as available, which lets
// ffmpeg itself fail loudly if a codec is missing.
type Capabilities struct {
	encoders map[string]bool
}

// NewCapabilities returns a known capability set with the given encoders.
func NewCapabilities(encoders ...string) Capabilities {
	c := Capabilities{encoders: make(map[string]bool, len(encoders))}
	for _, e := range encoders {
		c.encoders[e] = true
	}
	return c
}

// Known reports whether the set came from a successful probe.
func (c Capabilities) Known() bool {
	return c.encoders != nil
}

// Has reports whether the named encoder is available.
func (c Capabilities) Has(encoder string) bool {
	if c.encoders == nil {
		return true
	}
	return c.encoders[encoder]
}

// Encoders returns the known encoder names, sorted.
func (c Capabilities) Encoders() []string {
	names := make([]string, 0, len(c.encoders))
	for name := range c.encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProbeEncoders lists the encoders of the ffmpeg binary at path.
func ProbeEncoders(ctx context.Context, path string) (Capabilities, error) {
	cmd := exec.CommandContext(ctx, path, "-hide_banner", "-encoders")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Capabilities{}, fmt.Errorf("ffmpeg -encoders: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	return ParseEncoders(stdout.String()), nil
}

// ParseEncoders parses the output of `ffmpeg -encoders`. Entries follow a
// "------" separator line and look like " V....D libvpx-vp9   libvpx VP9".
func ParseEncoders(output string) Capabilities {
	caps := NewCapabilities()
	started := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !started {
			if strings.HasPrefix(line, "------") {
				started = true
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		caps.encoders[fields[1]] = true
	}

	return caps
}

// codecChoice is an encoder with the output options it needs.
type codecChoice struct {
	encoder string
	args    []string
}

var (
	alphaCodecs = map[Format][]codecChoice{
		FormatAVI: {
			{"png", []string{"-c:v", "png", "-pix_fmt", "rgba"}},
			{"ffvhuff", []string{"-c:v", "ffvhuff", "-pix_fmt", "rgba"}},
		},
		FormatWebM: {
			{"libvpx-vp9", []string{"-c:v", "libvpx-vp9", "-pix_fmt", "yuva420p", "-auto-alt-ref", "0", "-b:v", "0", "-crf", "30"}},
			{"libvpx", []string{"-c:v", "libvpx", "-pix_fmt", "yuva420p", "-auto-alt-ref", "0", "-b:v", "1M"}},
		},
	}

	opaqueCodecs = map[Format][]codecChoice{
		FormatAVI: {
			{"mjpeg", []string{"-c:v", "mjpeg", "-q:v", "3", "-pix_fmt", "yuvj420p"}},
			{"mpeg4", []string{"-c:v", "mpeg4", "-q:v", "3"}},
		},
		FormatWebM: {
			{"libvpx-vp9", []string{"-c:v", "libvpx-vp9", "-pix_fmt", "yuv420p", "-b:v", "0", "-crf", "30"}},
			{"libvpx", []string{"-c:v", "libvpx", "-pix_fmt", "yuv420p", "-b:v", "1M"}},
		},
	}
)

// selectCodec picks the output codec options for a video container. When
// transparency is requested but no alpha-capable encoder is available it
// falls back to an opaque codec and reports dropped=true. When nothing in
// the table is available no codec is forced and ffmpeg picks its default.
func selectCodec(format Format, transparent bool, caps Capabilities) (args []string, dropped bool) {
	if transparent {
		for _, c := range alphaCodecs[format] {
			if caps.Has(c.encoder) {
				return c.args, false
			}
		}
		dropped = true
	}

	for _, c := range opaqueCodecs[format] {
		if caps.Has(c.encoder) {
			return c.args, dropped
		}
	}
	return nil, dropped
}

// EncoderChoice names the encoders a format resolves to for a capability
// set. An empty Alpha means transparent output in that format is encoded
// opaque; an empty Opaque means ffmpeg picks its own default.
type EncoderChoice struct {
	Format Format
	Opaque string
	Alpha  string
}

// ChooseEncoders reports, per output format, which encoders BuildPlan would
// pick with caps. GIF transparency comes from the palette and needs only the
// gif encoder.
func ChooseEncoders(caps Capabilities) []EncoderChoice {
	choices := []EncoderChoice{{Format: FormatGIF}}
	if caps.Has("gif") {
		choices[0].Opaque, choices[0].Alpha = "gif", "gif"
	}

	for _, format := range []Format{FormatAVI, FormatWebM} {
		choice := EncoderChoice{Format: format}
		for _, c := range opaqueCodecs[format] {
			if caps.Has(c.encoder) {
				choice.Opaque = c.encoder
				break
			}
		}
		for _, c := range alphaCodecs[format] {
			if caps.Has(c.encoder) {
				choice.Alpha = c.encoder
				break
			}
		}
		choices = append(choices, choice)
	}
	return choices
}
