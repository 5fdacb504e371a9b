package startup

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"anim-converter/internal/logging"

	"github.com/pelletier/go-toml/v2"
)

// configKeys are the settings a config file may carry. File keys are the
// environment variable names in lower case, e.g. max_upload_size = "100MiB".
var configKeys = []string{
	"PORT", "METRICS_PORT", "METRICS_ENABLED",
	"SCRATCH_DIR", "STALE_SCRATCH_AGE",
	"FFMPEG_PATH", "FFPROBE_PATH", "STAGE_TIMEOUT",
	"MAX_UPLOAD_SIZE", "MAX_FRAMES", "OUTPUT_SIZE", "DEFAULT_FPS",
	"TRANSPARENCY_COLOR", "ALPHA_THRESHOLD", "LOG_HEALTH_CHECKS",
}

// fileValues holds the settings loaded from CONFIG_FILE, keyed by
// environment variable name. Environment variables take precedence.
var fileValues map[string]string

// loadConfigFile reads a flat TOML file of settings.
func loadConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(map[string]string, len(raw))
	for _, key := range keys {
		name := strings.ToUpper(key)
		if !slices.Contains(configKeys, name) {
			logging.Warn("Ignoring unknown setting %q in %s", key, path)
			continue
		}
		switch v := raw[key].(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%s: %s must be a plain value", path, key)
		default:
			values[name] = fmt.Sprint(v)
		}
	}

	return values, nil
}

// lookup returns the environment value for key, falling back to the config
// file.
func lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fileValues[key]
}
