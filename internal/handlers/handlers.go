package handlers

import (
	"context"
	"net/http"
	"time"

	"anim-converter/internal/converter"
	"anim-converter/internal/startup"
	"anim-converter/internal/streaming"
	"anim-converter/internal/workspace"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type deliverFunc func(ctx context.Context, w http.ResponseWriter, a streaming.Artifact, config streaming.Config) (int64, error)

// Handlers holds the dependencies shared by every HTTP handler.
type Handlers struct {
	converter *converter.Converter
	workspace *workspace.Manager

	maxUploadSize int64
	maxFrames     int
	defaultFPS    int
	outputSize    int
	stream        streaming.Config
	deliver       deliverFunc

	ffmpegAvailable bool
	startTime       time.Time
}

func New(conv *converter.Converter, ws *workspace.Manager, config *startup.Config, ffmpegAvailable bool) *Handlers {
	return &Handlers{
		converter:       conv,
		workspace:       ws,
		maxUploadSize:   config.MaxUploadSize,
		maxFrames:       config.MaxFrames,
		defaultFPS:      config.DefaultFPS,
		outputSize:      config.OutputSize,
		stream:          streaming.DefaultConfig(),
		deliver:         streaming.Deliver,
		ffmpegAvailable: ffmpegAvailable,
		startTime:       time.Now(),
	}
}

// MetricsHandler returns the Prometheus metrics handler
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
