package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anim-converter/internal/converter"
	"anim-converter/internal/encoder"
	"anim-converter/internal/handlers"
	"anim-converter/internal/logging"
	"anim-converter/internal/memory"
	"anim-converter/internal/metrics"
	"anim-converter/internal/middleware"
	"anim-converter/internal/startup"
	"anim-converter/internal/workspace"

	"github.com/gorilla/mux"
)

// alphaEncoders are the codecs whose presence decides whether transparent
// video output keeps its alpha channel.
var alphaEncoders = []string{"png", "ffvhuff", "libvpx-vp9", "libvpx"}

// scratchUsageAdapter adapts workspace.Manager to metrics.ScratchProvider
type scratchUsageAdapter struct {
	usage func() (int, int64, error)
}

// Usage implements metrics.ScratchProvider
func (a *scratchUsageAdapter) Usage() (metrics.ScratchUsage, error) {
	entries, bytes, err := a.usage()
	if err != nil {
		return metrics.ScratchUsage{}, err
	}
	return metrics.ScratchUsage{Entries: entries, Bytes: bytes}, nil
}

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Scratch space
	ws, err := workspace.NewManager(config.ScratchDir, metrics.ScratchObserver{})
	if err != nil {
		startup.LogFatal("Failed to initialize scratch space: %v", err)
	}
	sweep := ws.SweepStale(config.StaleScratchAge)
	metrics.StaleSweepRemovedTotal.Add(float64(len(sweep.Removed)))
	startup.LogScratchSweep(len(sweep.Removed), len(sweep.Errors), sweep.Skipped, config.StaleScratchAge)

	// Encoder
	ffmpegAvailable := startup.LogEngineInit(config.FFmpegPath)
	caps := probeCapabilities(config.FFmpegPath, ffmpegAvailable)

	runner := encoder.NewFFmpegRunner(config.FFmpegPath, config.StageTimeout)
	conv := converter.New(converter.Config{
		Runner:       runner,
		Capabilities: caps,
		Options: encoder.Options{
			TransparencyColor: config.TransparencyColor,
			AlphaThreshold:    config.AlphaThreshold,
		},
		FFprobePath: config.FFprobePath,
		Size:        config.OutputSize,
		Workers:     config.Workers,
		Observer:    metrics.NewEncoderObserver(),
	})

	// Metrics
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(&scratchUsageAdapter{usage: ws.Usage}, time.Minute)
	collector.Start()

	h := handlers.New(conv, ws, config, ffmpegAvailable)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapMiddleware(router, config),
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and artifact delivery are bounded by the streaming
		// writer and the stage timeout instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, collector, conv)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// probeCapabilities asks ffmpeg which encoders it was built with. An
// unknown capability set lets every codec through and leaves failures to
// the encode stage.
func probeCapabilities(ffmpegPath string, available bool) encoder.Capabilities {
	if !available {
		startup.LogEngineCapabilities(false, 0, nil)
		return encoder.Capabilities{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	caps, err := encoder.ProbeEncoders(ctx, ffmpegPath)
	if err != nil {
		logging.Warn("Could not list ffmpeg encoders: %v", err)
		startup.LogEngineCapabilities(false, 0, nil)
		return encoder.Capabilities{}
	}

	alpha := make(map[string]bool, len(alphaEncoders))
	for _, name := range alphaEncoders {
		alpha[name] = caps.Has(name)
	}
	startup.LogEngineCapabilities(true, len(caps.Encoders()), alpha)
	return caps
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Conversion
	r.HandleFunc("/convert", h.ConvertVideo).Methods("POST").Name("convert-video")
	r.HandleFunc("/convert/frames", h.ConvertFrames).Methods("POST").Name("convert-frames")

	return r
}

func wrapMiddleware(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)
	handler = middleware.Logger(loggingConfig)(handler)
	return middleware.CORS(middleware.DefaultCORSConfig())(handler)
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", h.MetricsHandler())
	m.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:         ":" + port,
		Handler:      m,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, conv *converter.Converter) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// Requests still running past the deadline hold ffmpeg processes
	startup.LogShutdownStep("Stopping encoder processes")
	conv.Cleanup()
	startup.LogShutdownStepComplete("Encoder processes stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
