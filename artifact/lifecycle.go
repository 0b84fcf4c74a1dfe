package artifact

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionConfig bounds how long run artifacts are kept on disk.
type RetentionConfig struct {
	RetentionDays        int  // days before a run is deleted
	ArchiveAfterDays     int  // days before a run is compressed into the archive
	ArchiveRetentionDays int  // days to keep archives
	KeepFailed           bool // failed runs are exempt from cleanup
	KeepMinRuns          int  // never drop below this many runs
}

// DefaultRetentionConfig returns the default retention policy.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays:        30,
		ArchiveAfterDays:     7,
		ArchiveRetentionDays: 90,
		KeepFailed:           true,
		KeepMinRuns:          100,
	}
}

// LifecycleManager applies the retention policy to a Manager's base
// directory.
type LifecycleManager struct {
	manager *Manager
	baseDir string
	config  RetentionConfig
}

// NewLifecycleManager creates a lifecycle manager over the same base
// directory as the given Manager.
func NewLifecycleManager(manager *Manager, config RetentionConfig) *LifecycleManager {
	return &LifecycleManager{
		manager: manager,
		baseDir: manager.baseDir,
		config:  config,
	}
}

// CleanupResult summarizes one cleanup pass.
type CleanupResult struct {
	Archived   []string `json:"archived"`
	Deleted    []string `json:"deleted"`
	Kept       []string `json:"kept"`
	Errors     []string `json:"errors,omitempty"`
	SpaceSaved int64    `json:"space_saved"`
}

// Cleanup archives and deletes runs per the retention policy. With
// dryRun set, it reports what would happen without touching disk.
func (m *LifecycleManager) Cleanup(dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{}

	runIDs, err := m.manager.Runs()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	archiveThreshold := now.Add(-time.Duration(m.config.ArchiveAfterDays) * 24 * time.Hour)
	deleteThreshold := now.Add(-time.Duration(m.config.RetentionDays) * 24 * time.Hour)

	type runInfo struct {
		id      string
		meta    *RunMetadata
		size    int64
		endedAt time.Time
	}

	var runs []runInfo
	for _, runID := range runIDs {
		meta, err := m.manager.ReadMetadata(runID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("load %s: %v", runID, err))
			continue
		}
		runs = append(runs, runInfo{
			id:      runID,
			meta:    meta,
			size:    dirSize(m.manager.RunDir(runID)),
			endedAt: meta.EndedAt,
		})
	}

	// Oldest first, so the minimum-runs floor keeps the newest.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].endedAt.Before(runs[j].endedAt)
	})

	removed := 0
	for _, run := range runs {
		if m.config.KeepFailed && run.meta.Status == "failed" {
			result.Kept = append(result.Kept, run.id)
			continue
		}
		if run.meta.Status == "running" || run.endedAt.IsZero() {
			result.Kept = append(result.Kept, run.id)
			continue
		}
		if len(runs)-removed-1 < m.config.KeepMinRuns {
			result.Kept = append(result.Kept, run.id)
			continue
		}

		switch {
		case run.endedAt.Before(deleteThreshold):
			if !dryRun {
				if err := os.RemoveAll(m.manager.RunDir(run.id)); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", run.id, err))
					continue
				}
			}
			result.Deleted = append(result.Deleted, run.id)
			result.SpaceSaved += run.size
			removed++

		case run.endedAt.Before(archiveThreshold):
			if !dryRun {
				if err := m.archiveRun(run.id, run.endedAt); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("archive %s: %v", run.id, err))
					continue
				}
			}
			result.Archived = append(result.Archived, run.id)
			result.SpaceSaved += run.size / 2
			removed++

		default:
			result.Kept = append(result.Kept, run.id)
		}
	}

	return result, nil
}

// archiveRun compresses one run directory into the archive and removes
// the original. Archives are bucketed by the month the run ended.
func (m *LifecycleManager) archiveRun(runID string, endedAt time.Time) error {
	runDir := m.manager.RunDir(runID)

	archiveDir := filepath.Join(m.baseDir, "archive", endedAt.Format("2006-01"))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return err
	}
	archivePath := filepath.Join(archiveDir, runID+".tar.gz")

	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		relPath, _ := filepath.Rel(runDir, path)
		header.Name = filepath.Join(runID, relPath)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		os.Remove(archivePath)
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.RemoveAll(runDir)
}

// RestoreArchive extracts an archived run back into the runs directory.
func (m *LifecycleManager) RestoreArchive(runID string) error {
	archivePath := m.findArchive(runID)
	if archivePath == "" {
		return fmt.Errorf("%w: archive for run %s", ErrNotFound, runID)
	}

	runDir := m.manager.RunDir(runID)
	if _, err := os.Stat(runDir); err == nil {
		return fmt.Errorf("run already restored: %s", runID)
	}

	return extractArchive(archivePath, filepath.Dir(runDir))
}

// ListArchives returns the run IDs of all archived runs.
func (m *LifecycleManager) ListArchives() ([]string, error) {
	var archives []string
	archiveDir := filepath.Join(m.baseDir, "archive")

	err := filepath.Walk(archiveDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".tar.gz") {
			archives = append(archives, strings.TrimSuffix(info.Name(), ".tar.gz"))
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Strings(archives)
	return archives, nil
}

// CleanupArchives removes archives older than the archive retention
// period.
func (m *LifecycleManager) CleanupArchives(dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{}
	threshold := time.Now().Add(-time.Duration(m.config.ArchiveRetentionDays) * 24 * time.Hour)

	archiveDir := filepath.Join(m.baseDir, "archive")
	err := filepath.Walk(archiveDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".tar.gz") {
			return nil
		}

		runID := strings.TrimSuffix(info.Name(), ".tar.gz")
		if info.ModTime().Before(threshold) {
			if !dryRun {
				if err := os.Remove(path); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("delete archive %s: %v", runID, err))
					return nil
				}
			}
			result.Deleted = append(result.Deleted, runID)
			result.SpaceSaved += info.Size()
		} else {
			result.Kept = append(result.Kept, runID)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return result, nil
}

// DiskUsageStats reports how much space run artifacts occupy.
type DiskUsageStats struct {
	RunCount     int   `json:"run_count"`
	ArchiveCount int   `json:"archive_count"`
	ActiveSize   int64 `json:"active_size"`
	ArchiveSize  int64 `json:"archive_size"`
	TotalSize    int64 `json:"total_size"`
}

// DiskUsage computes artifact disk usage.
func (m *LifecycleManager) DiskUsage() (*DiskUsageStats, error) {
	stats := &DiskUsageStats{}

	runIDs, err := m.manager.Runs()
	if err != nil {
		return nil, err
	}
	stats.RunCount = len(runIDs)
	for _, runID := range runIDs {
		stats.ActiveSize += dirSize(m.manager.RunDir(runID))
	}

	filepath.Walk(filepath.Join(m.baseDir, "archive"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".tar.gz") {
			stats.ArchiveSize += info.Size()
			stats.ArchiveCount++
		}
		return nil
	})

	stats.TotalSize = stats.ActiveSize + stats.ArchiveSize
	return stats, nil
}

func (m *LifecycleManager) findArchive(runID string) string {
	var found string
	filepath.Walk(filepath.Join(m.baseDir, "archive"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Name() == runID+".tar.gz" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, header.Name)
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)) {
			return fmt.Errorf("invalid path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
			if err := os.Chmod(target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
