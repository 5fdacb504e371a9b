package converter

import (
	"context"
	"errors"
	"time"

	"anim-converter/internal/encoder"
	"anim-converter/internal/frames"
	"anim-converter/internal/logging"
	"anim-converter/internal/metrics"
	"anim-converter/internal/verify"
	"anim-converter/internal/workspace"

	"github.com/dustin/go-humanize"
)

// FailureStage names the pipeline step a failed conversion stopped at.
type FailureStage string

// Failure stages.
const (
	StageInput    FailureStage = "input"
	StageCapacity FailureStage = "capacity"
	StageStaging  FailureStage = "staging"
	StageEncode   FailureStage = "encode"
	StageVerify   FailureStage = "verify"
)

// Outcome is the terminal result of a conversion. On success ArtifactPath
// and ByteSize are set; on failure Stage and Message are.
type Outcome struct {
	Success bool

	ArtifactPath string
	ByteSize     int64
	Format       encoder.Format

	Stage   FailureStage
	Message string
	Err     error

	// TransparencyDropped is set when transparency was requested but the
	// output had to be encoded without alpha.
	TransparencyDropped bool
	// Warnings are non-fatal observations about the input.
	Warnings []string
}

// Config configures a Converter.
type Config struct {
	Runner       encoder.Runner
	Capabilities encoder.Capabilities
	Options      encoder.Options

	// FFprobePath enables duration probing of video input for progress.
	// Empty disables it.
	FFprobePath string

	// Size is the default square canvas edge for video input.
	Size int

	// Workers bounds concurrent conversions.
	Workers int

	// Observer receives stage events in addition to the request log.
	Observer encoder.Observer
}

// Converter runs conversion requests. It is safe for concurrent use; all
// per-request state lives in the caller's ResourceSet.
type Converter struct {
	runner   encoder.Runner
	caps     encoder.Capabilities
	opts     encoder.Options
	ffprobe  string
	size     int
	limiter  *Limiter
	observer encoder.Observer
}

// New creates a Converter.
func New(cfg Config) *Converter {
	if cfg.Size <= 0 {
		cfg.Size = 300
	}
	if cfg.Options == (encoder.Options{}) {
		cfg.Options = encoder.DefaultOptions()
	}

	return &Converter{
		runner:   cfg.Runner,
		caps:     cfg.Capabilities,
		opts:     cfg.Options,
		ffprobe:  cfg.FFprobePath,
		size:     cfg.Size,
		limiter:  NewLimiter(cfg.Workers),
		observer: cfg.Observer,
	}
}

// Limiter returns the converter's slot limiter.
func (c *Converter) Limiter() *Limiter {
	return c.limiter
}

// Convert runs one request to completion. Every path it creates is
// registered in rs before it is created; the caller releases rs after
// delivering (or failing to deliver) the artifact.
func (c *Converter) Convert(ctx context.Context, req Request, rs *workspace.ResourceSet) Outcome {
	log := logging.Request(rs.ShortID())
	start := time.Now()

	out := c.convert(ctx, req, rs, log)
	out.Format = req.Format

	status := "success"
	if !out.Success {
		status = string(out.Stage)
	}
	if _, err := encoder.ParseFormat(string(req.Format)); err == nil {
		metrics.ConversionsTotal.WithLabelValues(string(req.Format), status).Inc()
	}

	if out.Success {
		metrics.ConversionDuration.WithLabelValues(string(req.Format)).Observe(time.Since(start).Seconds())
		metrics.ArtifactBytes.WithLabelValues(string(req.Format)).Observe(float64(out.ByteSize))
		log.Info("Conversion to %s complete: %s in %v", req.Format, humanize.IBytes(uint64(out.ByteSize)), time.Since(start).Round(time.Millisecond))
	} else {
		log.Warn("Conversion failed at %s stage: %s", out.Stage, out.Message)
	}

	return out
}

func (c *Converter) convert(ctx context.Context, req Request, rs *workspace.ResourceSet, log logging.RequestLogger) Outcome {
	if err := req.Validate(); err != nil {
		return failure(StageInput, err.Error(), err)
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return failure(StageCapacity, ErrNoSlot.Error(), err)
	}
	defer c.limiter.Release()

	metrics.ConversionsInProgress.Inc()
	defer metrics.ConversionsInProgress.Dec()

	var warnings []string
	in := encoder.PlanInput{
		Format:       req.Format,
		Transparent:  req.Transparent,
		FPS:          req.FPS,
		Size:         req.Size,
		Output:       rs.Path("output" + req.Format.Ext()),
		Palette:      rs.Path("palette.png"),
		Options:      c.opts,
		Capabilities: c.caps,
	}
	if in.Size == 0 {
		in.Size = c.size
	}

	if req.Video != "" {
		in.Video = req.Video
		in.VideoDuration = c.probeDuration(ctx, req.Video, log)
	} else {
		warnings = append(warnings, frames.CheckOrdering(frames.Order(req.Frames))...)

		staged, err := frames.Stage(ctx, rs, req.Frames)
		if err != nil {
			return failure(StageStaging, err.Error(), err)
		}
		metrics.StagedFrames.Observe(float64(len(staged.Frames)))
		log.Debug("Staged %d frames in %s", len(staged.Frames), staged.Dir)

		warnings = append(warnings, frames.ProbeFrames(staged.Frames)...)
		in.FramePattern = staged.Pattern()
		in.FrameCount = len(staged.Frames)
	}

	for _, w := range warnings {
		log.Warn("%s", w)
	}

	plan, err := encoder.BuildPlan(in)
	if err != nil {
		out := failure(StageEncode, err.Error(), err)
		out.Warnings = warnings
		return out
	}

	// Register every stage output before anything runs so a failure in a
	// later stage still releases the earlier stage's output.
	for _, st := range plan.Stages {
		rs.Register(st.Output)
	}

	if plan.TransparencyDropped {
		metrics.TransparencyDroppedTotal.WithLabelValues(string(req.Format)).Inc()
		log.Warn("No alpha-capable %s encoder available, encoding without transparency", req.Format)
	}

	observers := encoder.Observers{logObserver{log: log}}
	if c.observer != nil {
		observers = append(observers, c.observer)
	}

	if err := encoder.Execute(ctx, c.runner, plan, observers); err != nil {
		out := failure(StageEncode, encodeMessage(err), err)
		out.TransparencyDropped = plan.TransparencyDropped
		out.Warnings = warnings
		return out
	}

	size, err := verify.Artifact(plan.Output(), req.Format)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, verify.ErrNotProduced) {
			msg = verify.ErrNotProduced.Error()
		}
		out := failure(StageVerify, msg, err)
		out.TransparencyDropped = plan.TransparencyDropped
		out.Warnings = warnings
		return out
	}

	return Outcome{
		Success:             true,
		ArtifactPath:        plan.Output(),
		ByteSize:            size,
		TransparencyDropped: plan.TransparencyDropped,
		Warnings:            warnings,
	}
}

// probeDuration returns the source duration for progress reporting, or zero
// when it cannot be determined.
func (c *Converter) probeDuration(ctx context.Context, path string, log logging.RequestLogger) time.Duration {
	if c.ffprobe == "" {
		return 0
	}

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	info, err := encoder.ProbeVideo(probeCtx, c.ffprobe, path)
	if err != nil {
		log.Debug("Could not probe video duration: %v", err)
		return 0
	}

	log.Debug("Source video: %s %dx%d, %v", info.Codec, info.Width, info.Height, info.Duration)
	return info.Duration
}

// Cleanup kills any ffmpeg processes still running, for use at shutdown.
func (c *Converter) Cleanup() {
	if cl, ok := c.runner.(interface{ Cleanup() }); ok {
		cl.Cleanup()
	}
}

func failure(stage FailureStage, msg string, err error) Outcome {
	return Outcome{Stage: stage, Message: msg, Err: err}
}

// encodeMessage returns the engine diagnostic when there is one.
func encodeMessage(err error) string {
	var se *encoder.StageError
	if errors.As(err, &se) && se.Diagnostic != "" {
		return se.Diagnostic
	}
	return err.Error()
}
