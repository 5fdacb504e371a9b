package startup

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"anim-converter/internal/logging"
	"anim-converter/internal/workers"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	ScratchDir      string
	StaleScratchAge time.Duration

	FFmpegPath   string
	FFprobePath  string
	StageTimeout time.Duration

	MaxUploadSize int64
	MaxFrames     int
	OutputSize    int
	DefaultFPS    int
	Workers       int

	TransparencyColor string
	AlphaThreshold    int

	LogHealthChecks bool
}

// Defaults
const (
	DefaultMaxUploadSize = 50 << 20
	DefaultMaxFrames     = 1000
	DefaultOutputSize    = 300
	DefaultFPS           = 30
)

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	fileValues = nil
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := loadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		fileValues = values
		logging.Info("  CONFIG_FILE:         %s (%d settings)", path, len(values))
	}

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:    getEnvBool("METRICS_ENABLED", true),
		ScratchDir:        getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "anim-converter")),
		StaleScratchAge:   getEnvDuration("STALE_SCRATCH_AGE", time.Hour),
		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:       getEnv("FFPROBE_PATH", "ffprobe"),
		StageTimeout:      getEnvDuration("STAGE_TIMEOUT", 5*time.Minute),
		MaxUploadSize:     getEnvBytes("MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
		MaxFrames:         getEnvInt("MAX_FRAMES", DefaultMaxFrames),
		OutputSize:        getEnvInt("OUTPUT_SIZE", DefaultOutputSize),
		DefaultFPS:        getEnvInt("DEFAULT_FPS", DefaultFPS),
		Workers:           workers.ForCPU(0),
		TransparencyColor: strings.TrimPrefix(getEnv("TRANSPARENCY_COLOR", "ff00ff"), "#"),
		AlphaThreshold:    getEnvInt("ALPHA_THRESHOLD", 128),
		LogHealthChecks:   getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  SCRATCH_DIR:         %s", config.ScratchDir)
	logging.Info("  STALE_SCRATCH_AGE:   %v", config.StaleScratchAge)
	logging.Info("  FFMPEG_PATH:         %s", config.FFmpegPath)
	logging.Info("  FFPROBE_PATH:        %s", config.FFprobePath)
	logging.Info("  STAGE_TIMEOUT:       %v", config.StageTimeout)
	logging.Info("  MAX_UPLOAD_SIZE:     %s", humanize.IBytes(uint64(config.MaxUploadSize)))
	logging.Info("  MAX_FRAMES:          %d", config.MaxFrames)
	logging.Info("  OUTPUT_SIZE:         %d", config.OutputSize)
	logging.Info("  DEFAULT_FPS:         %d", config.DefaultFPS)
	logging.Info("  CONVERT_WORKERS:     %d", config.Workers)
	logging.Info("  TRANSPARENCY_COLOR:  #%s", config.TransparencyColor)
	logging.Info("  ALPHA_THRESHOLD:     %d", config.AlphaThreshold)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	scratchDir, err := filepath.Abs(config.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory path: %w", err)
	}
	config.ScratchDir = scratchDir
	logging.Info("  Scratch directory (absolute): %s", scratchDir)

	if err := ensureDirectory(scratchDir, "scratch"); err != nil {
		return nil, fmt.Errorf("scratch directory error: %w", err)
	}

	logging.Debug("  Testing scratch directory write access...")
	if err := testWriteAccess(scratchDir); err != nil {
		return nil, fmt.Errorf("scratch directory is not writable (required for conversions): %w", err)
	}
	logging.Info("  [OK] Scratch directory is writable")

	return config, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("MAX_FRAMES must be positive, got %d", c.MaxFrames)
	}
	if c.OutputSize < 16 || c.OutputSize > 2048 {
		return fmt.Errorf("OUTPUT_SIZE must be between 16 and 2048, got %d", c.OutputSize)
	}
	if c.DefaultFPS < 1 || c.DefaultFPS > 60 {
		return fmt.Errorf("DEFAULT_FPS must be between 1 and 60, got %d", c.DefaultFPS)
	}
	if c.AlphaThreshold < 0 || c.AlphaThreshold > 255 {
		return fmt.Errorf("ALPHA_THRESHOLD must be between 0 and 255, got %d", c.AlphaThreshold)
	}
	if !isHexColor(c.TransparencyColor) {
		return fmt.Errorf("TRANSPARENCY_COLOR must be six hex digits, got %q", c.TransparencyColor)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 6 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

// LogEngineInit checks the ffmpeg binary and logs the result. It returns
// whether ffmpeg is usable; the server still starts without it but reports
// not ready.
func LogEngineInit(ffmpegPath string) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENGINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	version, err := checkFFmpeg(ffmpegPath)
	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Conversions will fail until ffmpeg is installed")
		return false
	}

	logging.Info("  [OK] FFmpeg is available")
	if version != "" {
		logging.Info("  %s", version)
	}
	return true
}

// LogEngineCapabilities logs which alpha-capable encoders were found.
func LogEngineCapabilities(known bool, encoderCount int, alpha map[string]bool) {
	if !known {
		logging.Warn("  Could not list ffmpeg encoders; codec fallback disabled")
		return
	}

	logging.Info("  Encoders available: %d", encoderCount)

	names := make([]string, 0, len(alpha))
	for name := range alpha {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if alpha[name] {
			logging.Info("    %-12s [OK]", name)
		} else {
			logging.Warn("    %-12s missing, transparent output in this format falls back to opaque", name)
		}
	}
}

// LogScratchSweep logs the result of the startup stale-scratch sweep.
func LogScratchSweep(removed, failed int, skipped bool, maxAge time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SCRATCH SPACE")
	logging.Info("------------------------------------------------------------")

	if skipped {
		logging.Info("  [SKIP] Another instance is sweeping the scratch directory")
		return
	}

	if removed == 0 && failed == 0 {
		logging.Info("  [OK] No leftovers older than %v", maxAge)
		return
	}
	logging.Info("  Removed %d leftover entries older than %v", removed, maxAge)
	if failed > 0 {
		logging.Warn("  %d leftover entries could not be removed", failed)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Convert video: POST http://0.0.0.0:%s/convert", config.Port)
	logging.Info("    Convert frames: POST http://0.0.0.0:%s/convert/frames", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    _          _              ___                          _
   /_\  _ _ (_)_ __    ___  / __|___ _ ___ _____ _ _| |_ ___ _ _
  / _ \| ' \| | '  \  |___|| (__/ _ \ ' \ V / -_) '_|  _/ -_) '_|
 /_/ \_\_||_|_|_|_|_|       \___\___/_||_\_/\___|_|  \__\___|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// checkFFmpeg resolves the binary and returns the first line of its
// version banner.
func checkFFmpeg(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}

func getEnv(key, defaultValue string) string {
	if value := lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := lookup(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := lookup(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvBytes accepts plain byte counts or sizes such as "50MiB" or "20MB".
func getEnvBytes(key string, defaultValue int64) int64 {
	value := lookup(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := humanize.ParseBytes(value)
	if err != nil || parsed > math.MaxInt64 {
		logging.Warn("Invalid size value for %s: %q, using default: %s", key, value, humanize.IBytes(uint64(defaultValue)))
		return defaultValue
	}
	return int64(parsed)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := lookup(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
