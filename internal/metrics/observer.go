package metrics

import (
	"time"

	"anim-converter/internal/encoder"
)

// encoderObserver implements encoder.Observer using the Prometheus metrics
// declared in this package.
type encoderObserver struct{}

// NewEncoderObserver creates an observer that records ffmpeg stage metrics
// into the counters and histograms declared in metrics.go.
func NewEncoderObserver() encoder.Observer {
	return &encoderObserver{}
}

func (o *encoderObserver) StageStarted(_ encoder.Stage, _ []string) {
	EncodeStagesInProgress.Inc()
}

func (o *encoderObserver) StageProgress(_ encoder.Stage, _ float64) {}

func (o *encoderObserver) StageFinished(stage encoder.Stage, elapsed time.Duration, err error) {
	EncodeStagesInProgress.Dec()
	EncodeStageDuration.WithLabelValues(stage.Name).Observe(elapsed.Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	EncodeStagesTotal.WithLabelValues(stage.Name, status).Inc()
}

// ScratchObserver records scratch cleanup into Prometheus counters. It
// satisfies workspace.Observer.
type ScratchObserver struct{}

// PathReleased counts a removed temporary path.
func (ScratchObserver) PathReleased(_ string) {
	CleanupPathsTotal.Inc()
}

// CleanupFailed counts a temporary path that could not be removed.
func (ScratchObserver) CleanupFailed(_ string, _ error) {
	CleanupErrorsTotal.Inc()
}
