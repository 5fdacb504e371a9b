package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"anim-converter/internal/logging"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// sweepLockName is the lock file that serializes stale sweeps between
// processes sharing one scratch directory.
const sweepLockName = ".sweep.lock"

// Observer receives cleanup events. Implementations must be safe for
// concurrent use; every in-flight request reports through the same observer.
type Observer interface {
	PathReleased(path string)
	CleanupFailed(path string, err error)
}

type nopObserver struct{}

func (nopObserver) PathReleased(string)         {}
func (nopObserver) CleanupFailed(string, error) {}

// Manager owns the scratch base directory shared by all requests.
type Manager struct {
	baseDir  string
	observer Observer
}

// NewManager creates the scratch base directory if needed and returns a
// manager rooted at it. A nil observer is replaced by a no-op.
func NewManager(baseDir string, observer Observer) (*Manager, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("scratch directory is required")
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	if observer == nil {
		observer = nopObserver{}
	}

	return &Manager{baseDir: abs, observer: observer}, nil
}

// BaseDir returns the absolute scratch base directory.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// NewRequest returns an empty ResourceSet namespaced by a fresh request ID.
// Nothing is created on disk until a path is requested.
func (m *Manager) NewRequest() *ResourceSet {
	id := uuid.NewString()
	return &ResourceSet{
		id:       id,
		baseDir:  m.baseDir,
		observer: m.observer,
		log:      logging.Request(shortID(id)),
		seen:     make(map[string]struct{}),
	}
}

// Usage reports the number of top-level entries in the scratch directory and
// the total bytes they hold.
func (m *Manager) Usage() (int, int64, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return 0, 0, err
	}

	count := 0
	var total int64
	for _, entry := range entries {
		if entry.Name() == sweepLockName {
			continue
		}
		count++
		path := filepath.Join(m.baseDir, entry.Name())
		if entry.IsDir() {
			size, _ := dirSize(path)
			total += size
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}

	return count, total, nil
}

// SweepResult contains the outcome of a stale scratch sweep.
type SweepResult struct {
	Removed []string
	Errors  []CleanupError
	// Skipped is set when another process holds the sweep lock.
	Skipped bool
}

// CleanupError pairs a path with its removal error.
type CleanupError struct {
	Path  string
	Error error
}

// SweepStale removes scratch entries older than maxAge. Requests always
// release their own paths, so anything this finds was left behind by a
// process that died mid-request.
//
// Replicas mounting the same scratch volume take turns: a sweep that finds
// the lock held returns with Skipped set.
func (m *Manager) SweepStale(maxAge time.Duration) SweepResult {
	result := SweepResult{}

	lock := flock.New(filepath.Join(m.baseDir, sweepLockName))
	locked, err := lock.TryLock()
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: lock.Path(), Error: fmt.Errorf("acquire sweep lock: %w", err)})
		return result
	}
	if !locked {
		logging.Info("Scratch sweep already running in another process, skipping")
		result.Skipped = true
		return result
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.Warn("Failed to release sweep lock: %v", err)
		}
	}()

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: m.baseDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if entry.Name() == sweepLockName {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}

		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logging.Warn("Failed to remove stale scratch entry %s: %v", path, err)
			continue
		}

		result.Removed = append(result.Removed, path)
		logging.Info("Removed stale scratch entry %s (age %v)", path, time.Since(info.ModTime()).Round(time.Second))
	}

	return result
}

// ResourceSet tracks every path created on behalf of a single request.
// It is owned by that request and never shared.
type ResourceSet struct {
	id       string
	baseDir  string
	observer Observer
	log      logging.RequestLogger

	mu    sync.Mutex
	paths []string
	seen  map[string]struct{}
}

// ID returns the request ID that namespaces this set's paths.
func (r *ResourceSet) ID() string {
	return r.id
}

// ShortID returns the first segment of the request ID, for log lines.
func (r *ResourceSet) ShortID() string {
	return shortID(r.id)
}

// Path returns a request-namespaced path under the scratch base. The path is
// not registered; callers register it once they are about to create it.
func (r *ResourceSet) Path(name string) string {
	return filepath.Join(r.baseDir, r.id+"-"+SanitizeName(name))
}

// MkdirUnique creates and registers a request-namespaced directory. It fails
// if the directory already exists.
func (r *ResourceSet) MkdirUnique(name string) (string, error) {
	dir := r.Path(name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	r.Register(dir)
	return dir, nil
}

// Register adds a path to the set. Registering the same path twice is a no-op.
func (r *ResourceSet) Register(path string) {
	if path == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[path]; ok {
		return
	}
	r.seen[path] = struct{}{}
	r.paths = append(r.paths, path)
}

// Paths returns a copy of the currently registered paths in registration order.
func (r *ResourceSet) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// ReleaseAll removes every registered path, files directly and directories
// recursively. Paths that were never created are skipped silently. Individual failures are logged and reported to the observer
// but never returned, so one stuck path does not block the rest. The set is
// emptied, which makes a second call a no-op. It returns the number of paths
// that could not be removed.
func (r *ResourceSet) ReleaseAll() int {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.seen = make(map[string]struct{})
	r.mu.Unlock()

	failed, released := 0, 0
	// Reverse order: outputs and palettes first, staging directories last.
	for i := len(paths) - 1; i >= 0; i-- {
		path := paths[i]
		// Registered but never created, e.g. an output of a stage that
		// did not run.
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			failed++
			r.log.Warn("Failed to remove temporary path %s: %v", path, err)
			r.observer.CleanupFailed(path, err)
			continue
		}
		r.observer.PathReleased(path)
		released++
	}

	if released > 0 || failed > 0 {
		r.log.Debug("Released %d temporary paths (%d failed)", released, failed)
	}

	return failed
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces a client-supplied filename to a safe single path
// element. Directory components are dropped.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
