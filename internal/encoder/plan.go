package encoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format is an output container.
type Format string

// Supported output formats.
const (
	FormatGIF  Format = "gif"
	FormatAVI  Format = "avi"
	FormatWebM Format = "webm"
)

// ParseFormat parses a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGIF:
		return FormatGIF, nil
	case FormatAVI:
		return FormatAVI, nil
	case FormatWebM:
		return FormatWebM, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want gif, avi or webm)", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ContentType returns the MIME type used when delivering the format.
func (f Format) ContentType() string {
	switch f {
	case FormatGIF:
		return "image/gif"
	case FormatAVI:
		return "video/x-msvideo"
	case FormatWebM:
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// Stage names, also used as metric labels.
const (
	StageEncode     = "encode"
	StagePaletteGen = "palettegen"
	StagePaletteUse = "paletteuse"
)

// Stage is one ffmpeg invocation. Args holds everything after the global
// flags the runner adds, ending with Output.
type Stage struct {
	Name   string
	Inputs []string
	Args   []string
	Output string

	// Expected media duration, used to turn ffmpeg's out_time into a
	// percentage. Zero disables progress reporting.
	Duration time.Duration
}

// Plan is the ordered list of stages for one conversion. A later stage may
// read an earlier stage's output; there is never more than one such edge.
type Plan struct {
	Stages []Stage

	// TransparencyDropped is set when transparency was requested but the
	// engine has no alpha-capable codec for the container.
	TransparencyDropped bool
}

// Output returns the final artifact path, the last stage's output.
func (p Plan) Output() string {
	if len(p.Stages) == 0 {
		return ""
	}
	return p.Stages[len(p.Stages)-1].Output
}

// Options are the tunables of the transparency pipeline.
type Options struct {
	// TransparencyColor is the sentinel colour palettegen reserves for the
	// transparent palette entry, as hex RRGGBB.
	TransparencyColor string
	// AlphaThreshold is the paletteuse cut-off (0-255) below which pixels map
	// to the transparent entry.
	AlphaThreshold int
}

// DefaultOptions returns the default transparency options.
func DefaultOptions() Options {
	return Options{
		TransparencyColor: "ff00ff",
		AlphaThreshold:    128,
	}
}

// PlanInput describes one conversion to plan. Exactly one of Video and
// FramePattern is set.
type PlanInput struct {
	Video        string
	FramePattern string
	FrameCount   int

	Format      Format
	Transparent bool
	FPS         int
	// Size is the square canvas edge used for video input.
	Size int

	Output  string
	Palette string

	// VideoDuration is the probed source duration, if known.
	VideoDuration time.Duration

	Options      Options
	Capabilities Capabilities
}

// Errors returned by BuildPlan for malformed input.
var (
	ErrNoInput       = errors.New("plan needs either a video or a frame pattern")
	ErrAmbiguousPlan = errors.New("plan needs a video or a frame pattern, not both")
)

// BuildPlan turns a conversion description into stages. It is pure: nothing
// is executed and nothing touches the filesystem.
func BuildPlan(in PlanInput) (Plan, error) {
	if err := validate(in); err != nil {
		return Plan{}, err
	}

	duration := in.VideoDuration
	if in.FramePattern != "" && in.FrameCount > 0 {
		duration = time.Duration(in.FrameCount) * time.Second / time.Duration(in.FPS)
	}

	source := sourceArgs(in)
	inputs := []string{sourcePath(in)}
	pre := preFilter(in)

	switch in.Format {
	case FormatGIF:
		if in.Transparent {
			return transparentGIF(in, source, inputs, pre, duration), nil
		}
		graph := "[0:v]" + withComma(pre) + "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
		args := concat(source, []string{"-filter_complex", graph, "-loop", "0", in.Output})
		return Plan{Stages: []Stage{{
			Name:     StageEncode,
			Inputs:   inputs,
			Args:     args,
			Output:   in.Output,
			Duration: duration,
		}}}, nil

	default:
		codec, dropped := selectCodec(in.Format, in.Transparent, in.Capabilities)
		args := concat(source, nil)
		if pre != "" {
			args = append(args, "-vf", pre)
		}
		args = append(args, "-an")
		args = append(args, codec...)
		args = append(args, in.Output)
		return Plan{
			Stages: []Stage{{
				Name:     StageEncode,
				Inputs:   inputs,
				Args:     args,
				Output:   in.Output,
				Duration: duration,
			}},
			TransparencyDropped: dropped,
		}, nil
	}
}

// transparentGIF builds the two-pass plan: palettegen with a reserved
// transparent entry, then paletteuse with an alpha threshold.
func transparentGIF(in PlanInput, source, inputs []string, pre string, duration time.Duration) Plan {
	opts := in.Options
	if opts.TransparencyColor == "" {
		opts.TransparencyColor = DefaultOptions().TransparencyColor
	}

	gen := fmt.Sprintf("palettegen=reserve_transparent=1:transparency_color=%s", opts.TransparencyColor)
	genArgs := concat(source, []string{"-vf", withComma(pre) + gen, "-frames:v", "1", in.Palette})

	use := fmt.Sprintf("paletteuse=alpha_threshold=%d", opts.AlphaThreshold)
	var graph string
	if pre != "" {
		graph = "[0:v]" + pre + "[x];[x][1:v]" + use
	} else {
		graph = "[0:v][1:v]" + use
	}
	useArgs := concat(source, []string{"-i", in.Palette, "-filter_complex", graph, "-loop", "0", in.Output})

	return Plan{Stages: []Stage{
		{
			Name:     StagePaletteGen,
			Inputs:   inputs,
			Args:     genArgs,
			Output:   in.Palette,
			Duration: duration,
		},
		{
			Name:     StagePaletteUse,
			Inputs:   append(append([]string{}, inputs...), in.Palette),
			Args:     useArgs,
			Output:   in.Output,
			Duration: duration,
		},
	}}
}

func validate(in PlanInput) error {
	switch {
	case in.Video == "" && in.FramePattern == "":
		return ErrNoInput
	case in.Video != "" && in.FramePattern != "":
		return ErrAmbiguousPlan
	case in.FPS <= 0:
		return fmt.Errorf("fps must be positive, got %d", in.FPS)
	case in.Output == "":
		return errors.New("output path is required")
	}

	switch in.Format {
	case FormatGIF, FormatAVI, FormatWebM:
	default:
		return fmt.Errorf("unsupported output format %q", in.Format)
	}

	if in.Video != "" && in.Size <= 0 {
		return fmt.Errorf("canvas size must be positive, got %d", in.Size)
	}
	if in.Format == FormatGIF && in.Transparent && in.Palette == "" {
		return errors.New("transparent gif needs a palette path")
	}
	if in.Options.AlphaThreshold < 0 || in.Options.AlphaThreshold > 255 {
		return fmt.Errorf("alpha threshold must be within 0-255, got %d", in.Options.AlphaThreshold)
	}
	return nil
}

func sourceArgs(in PlanInput) []string {
	if in.Video != "" {
		return []string{"-i", in.Video}
	}
	return []string{
		"-framerate", strconv.Itoa(in.FPS),
		"-start_number", "0",
		"-i", in.FramePattern,
	}
}

func sourcePath(in PlanInput) string {
	if in.Video != "" {
		return in.Video
	}
	return in.FramePattern
}

// preFilter returns the resample/scale/pad chain applied to video input so
// the output has a fixed square canvas regardless of source resolution.
// Frame sequences are used as-is.
func preFilter(in PlanInput) string {
	if in.Video == "" {
		return ""
	}

	s := in.Size
	chain := []string{
		fmt.Sprintf("fps=%d", in.FPS),
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease:flags=lanczos", s, s),
	}
	pad := "black"
	if in.Transparent {
		chain = append(chain, "format=rgba")
		pad = "black@0"
	}
	chain = append(chain, fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s", s, s, pad))
	return strings.Join(chain, ",")
}

func withComma(filter string) string {
	if filter == "" {
		return ""
	}
	return filter + ","
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
