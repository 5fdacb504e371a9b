package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"anim-converter/internal/converter"
	"anim-converter/internal/encoder"
	"anim-converter/internal/frames"
	"anim-converter/internal/workspace"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const (
	defaultVideoFPS  = 30
	defaultFramesFPS = 10
	// Default timeout for a single ffmpeg stage
	defaultStageTimeout = 10 * time.Minute
)

// options are read from the environment.
type options struct {
	fps         int
	transparent bool
	format      encoder.Format
	scratchDir  string
	ffmpegPath  string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals so ffmpeg is killed and scratch is released
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr, isTTY))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer, isTTY bool) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var (
		out string
		req converter.Request
	)

	switch args[0] {
	case "video":
		if len(args) != 3 {
			printUsage(stderr)
			return 2
		}
		req.Video, out = args[1], args[2]
	case "frames":
		if len(args) < 3 {
			printUsage(stderr)
			return 2
		}
		out = args[1]
		for _, path := range args[2:] {
			req.Frames = append(req.Frames, frames.Upload{Name: filepath.Base(path), Path: path})
		}
	case "encoders":
		if len(args) != 1 {
			printUsage(stderr)
			return 2
		}
		ffmpegPath := "ffmpeg"
		if v := getenv("FFMPEG_PATH"); v != "" {
			ffmpegPath = v
		}
		if err := listEncoders(ctx, ffmpegPath, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(args[0]))
		printUsage(stderr)
		return 2
	}

	defaultFPS := defaultVideoFPS
	if req.Video == "" {
		defaultFPS = defaultFramesFPS
	}
	opts, err := parseOptions(getenv, out, defaultFPS)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	req.FPS = opts.fps
	req.Transparent = opts.transparent
	req.Format = opts.format
	req.Mode = converter.ModeFor(opts.format)

	if err := convert(ctx, req, opts, out, stdout, stderr, isTTY); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func convert(ctx context.Context, req converter.Request, opts options, out string, stdout, stderr io.Writer, isTTY bool) error {
	start := time.Now()

	ws, err := workspace.NewManager(opts.scratchDir, nil)
	if err != nil {
		return err
	}
	rs := ws.NewRequest()
	defer func() {
		if failed := rs.ReleaseAll(); failed > 0 {
			fmt.Fprintf(stderr, "Warning: %d temporary paths under %s could not be removed\n", failed, opts.scratchDir)
		}
	}()

	caps, err := encoder.ProbeEncoders(ctx, opts.ffmpegPath)
	if err != nil {
		caps = encoder.Capabilities{}
	}

	conv := converter.New(converter.Config{
		Runner:       encoder.NewFFmpegRunner(opts.ffmpegPath, defaultStageTimeout),
		Capabilities: caps,
		Workers:      1,
		Observer:     &progressPrinter{w: stdout, tty: isTTY},
	})
	defer conv.Cleanup()

	outcome := conv.Convert(ctx, req, rs)
	for _, w := range outcome.Warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	if outcome.TransparencyDropped {
		fmt.Fprintf(stderr, "Warning: ffmpeg has no alpha-capable %s encoder; output is opaque\n", req.Format)
	}
	if !outcome.Success {
		return fmt.Errorf("%s failed: %s", outcome.Stage, outcome.Message)
	}

	if err := copyArtifact(outcome.ArtifactPath, out); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Wrote %s (%s) in %v\n", out, humanize.IBytes(uint64(outcome.ByteSize)), time.Since(start).Round(time.Millisecond))
	return nil
}

// parseOptions reads FPS, TRANSPARENT, FORMAT, SCRATCH_DIR and FFMPEG_PATH.
// Without FORMAT the output file extension decides.
func parseOptions(getenv func(string) string, out string, defaultFPS int) (options, error) {
	opts := options{
		fps:        defaultFPS,
		format:     encoder.FormatGIF,
		scratchDir: filepath.Join(os.TempDir(), "animconv"),
		ffmpegPath: "ffmpeg",
	}

	if v := getenv("FPS"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid FPS %q", v)
		}
		opts.fps = fps
	}

	if v := getenv("TRANSPARENT"); v != "" {
		transparent, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid TRANSPARENT %q", v)
		}
		opts.transparent = transparent
	}

	format := getenv("FORMAT")
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(out), ".")
	}
	if format != "" {
		f, err := encoder.ParseFormat(format)
		if err != nil {
			return opts, err
		}
		opts.format = f
	}

	if v := getenv("SCRATCH_DIR"); v != "" {
		opts.scratchDir = v
	}
	if v := getenv("FFMPEG_PATH"); v != "" {
		opts.ffmpegPath = v
	}

	return opts, nil
}

// copyArtifact copies the finished artifact out of scratch space. A partial
// destination is removed on failure.
func copyArtifact(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Animation Converter")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  animconv video <input> <output>")
	fmt.Fprintln(w, "  animconv frames <output> <frame>...")
	fmt.Fprintln(w, "  animconv encoders")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  FPS          - Output frame rate (default: %d for video, %d for frames)\n", defaultVideoFPS, defaultFramesFPS)
	fmt.Fprintln(w, "  TRANSPARENT  - Keep transparency (default: false)")
	fmt.Fprintln(w, "  FORMAT       - gif, avi or webm (default: output file extension)")
	fmt.Fprintln(w, "  SCRATCH_DIR  - Directory for temporary files")
	fmt.Fprintln(w, "  FFMPEG_PATH  - ffmpeg binary (default: ffmpeg)")
}
