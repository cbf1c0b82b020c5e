package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KhalidMas23/ring-sms-notif/pkg/models"
)

// lowWaterRatio is the usage level eviction aims for once the quota has
// been breached, leaving headroom so we don't evict on every admission.
const lowWaterRatio = 0.9

// Manager owns the storage root: it writes artifacts, tracks total bytes,
// and evicts oldest files to respect the quota. Admissions are sequential;
// the mutex exists for the stats readers (viewer, metrics collector).
type Manager struct {
	root     string
	maxBytes int64
	log      *zap.Logger

	mu      sync.Mutex
	usage   int64
	files   int
	evicted int64
}

// New creates the root directory if needed and scans it to initialize the
// usage counter.
func New(root string, maxBytes int64, log *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	m := &Manager{root: root, maxBytes: maxBytes, log: log}
	if err := m.Scan(); err != nil {
		return nil, err
	}
	return m, nil
}

// Scan recomputes usage from disk. Called once at startup.
func (m *Manager) Scan() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("scanning storage root: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = 0
	m.files = 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		m.usage += info.Size()
		m.files++
	}
	return nil
}

// Admit writes the artifact under its deterministic name and enforces the
// quota. Re-admitting the same event overwrites the existing file.
func (m *Manager) Admit(art *models.MediaArtifact) (string, error) {
	return m.Put(art.Filename(), art.Data)
}

// Put writes one named file under the root, keeping the usage counter
// exact even when overwriting. The write holds no lock on the file itself,
// so concurrent readers (the web viewer) are never blocked.
func (m *Manager) Put(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.root, filepath.Base(name))

	var prev int64
	existed := false
	if info, err := os.Stat(path); err == nil {
		prev = info.Size()
		existed = true
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage write failed for %s: %w", name, err)
	}

	m.usage += int64(len(data)) - prev
	if !existed {
		m.files++
	}
	m.enforceQuotaLocked(path)

	return path, nil
}

// Usage returns the tracked total bytes under the root.
func (m *Manager) Usage() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// FileCount returns the number of stored files.
func (m *Manager) FileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files
}

// EvictedBytes returns the cumulative bytes freed by eviction.
func (m *Manager) EvictedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

// Root returns the storage root directory.
func (m *Manager) Root() string { return m.root }

// EnforceQuota evicts oldest files until usage is back at or below the
// low-water mark. No-op when the quota is disabled or not exceeded.
func (m *Manager) EnforceQuota() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enforceQuotaLocked("")
}

type storedFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (m *Manager) enforceQuotaLocked(justWritten string) {
	if m.maxBytes <= 0 || m.usage <= m.maxBytes {
		return
	}

	target := int64(float64(m.maxBytes) * lowWaterRatio)
	m.log.Info("storage quota exceeded, evicting oldest files",
		zap.Int64("usage_bytes", m.usage),
		zap.Int64("max_bytes", m.maxBytes),
		zap.Int64("target_bytes", target))

	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.log.Warn("eviction scan failed", zap.Error(err))
		return
	}

	files := make([]storedFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, storedFile{
			path:    filepath.Join(m.root, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}

	// Oldest mtime first; filenames embed the capture timestamp, so the
	// lexical tie-break stays chronological.
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if m.usage <= target {
			break
		}
		// Never evict the artifact whose admission triggered this pass.
		if f.path == justWritten {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			m.log.Warn("eviction failed", zap.String("file", filepath.Base(f.path)), zap.Error(err))
			continue
		}
		m.usage -= f.size
		m.files--
		m.evicted += f.size
		m.log.Info("evicted",
			zap.String("file", filepath.Base(f.path)),
			zap.Int64("freed_bytes", f.size))
	}
}
