package artifact

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestManager_SaveAndLoad(t *testing.T) {
	m := NewManager(t.TempDir())

	data := []byte("refine transcript")
	if err := m.Save("run-1", "refining.txt", data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := m.Load("run-1", "refining.txt")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Load() = %q, want %q", got, data)
	}
}

func TestManager_CompressesLargeArtifacts(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, WithCompressAbove(16))

	data := bytes.Repeat([]byte("the same line over and over\n"), 10)
	if err := m.Save("run-1", "big.log", data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "runs", "run-1", "big.log.gz")); err != nil {
		t.Fatalf("compressed file missing: %v", err)
	}

	got, err := m.Load("run-1", "big.log")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("decompressed content differs")
	}
}

func TestManager_LoadMissing(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Load("run-1", "nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestManager_ListStripsCompressionSuffix(t *testing.T) {
	m := NewManager(t.TempDir(), WithCompressAbove(4))
	m.Save("run-1", "small.txt", []byte("ok"))
	m.Save("run-1", "large.txt", []byte("longer than four"))
	m.WriteMetadata(RunMetadata{RunID: "run-1", IssueID: "QX-7", Status: "running"})

	names, err := m.List("run-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"large.txt", "small.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}
}

func TestManager_MetadataRoundTrips(t *testing.T) {
	m := NewManager(t.TempDir())

	meta := RunMetadata{
		RunID:     "run-1",
		IssueID:   "QX-7",
		Status:    "done",
		StartedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC),
	}
	if err := m.WriteMetadata(meta); err != nil {
		t.Fatalf("WriteMetadata() error = %v", err)
	}

	got, err := m.ReadMetadata("run-1")
	if err != nil {
		t.Fatalf("ReadMetadata() error = %v", err)
	}
	if got.IssueID != "QX-7" || got.Status != "done" {
		t.Errorf("ReadMetadata() = %+v", got)
	}
	if !got.EndedAt.Equal(meta.EndedAt) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, meta.EndedAt)
	}
}

func seedRun(t *testing.T, m *Manager, runID, status string, endedAt time.Time) {
	t.Helper()
	if err := m.Save(runID, "out.txt", []byte("output for "+runID)); err != nil {
		t.Fatal(err)
	}
	err := m.WriteMetadata(RunMetadata{
		RunID:   runID,
		IssueID: "QX-7",
		Status:  status,
		EndedAt: endedAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLifecycle_CleanupArchivesAndDeletes(t *testing.T) {
	m := NewManager(t.TempDir())
	lm := NewLifecycleManager(m, RetentionConfig{
		RetentionDays:    30,
		ArchiveAfterDays: 7,
		KeepMinRuns:      1,
	})

	now := time.Now()
	seedRun(t, m, "run-old", "done", now.Add(-60*24*time.Hour))
	seedRun(t, m, "run-stale", "done", now.Add(-10*24*time.Hour))
	seedRun(t, m, "run-fresh", "done", now.Add(-time.Hour))

	result, err := lm.Cleanup(false)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if !reflect.DeepEqual(result.Deleted, []string{"run-old"}) {
		t.Errorf("Deleted = %v", result.Deleted)
	}
	if !reflect.DeepEqual(result.Archived, []string{"run-stale"}) {
		t.Errorf("Archived = %v", result.Archived)
	}
	if !reflect.DeepEqual(result.Kept, []string{"run-fresh"}) {
		t.Errorf("Kept = %v", result.Kept)
	}

	if _, err := os.Stat(m.RunDir("run-stale")); !os.IsNotExist(err) {
		t.Error("archived run dir should be removed")
	}

	archives, err := lm.ListArchives()
	if err != nil {
		t.Fatalf("ListArchives() error = %v", err)
	}
	if !reflect.DeepEqual(archives, []string{"run-stale"}) {
		t.Errorf("ListArchives() = %v", archives)
	}
}

func TestLifecycle_KeepsFailedAndRunning(t *testing.T) {
	m := NewManager(t.TempDir())
	lm := NewLifecycleManager(m, RetentionConfig{
		RetentionDays:    1,
		ArchiveAfterDays: 1,
		KeepFailed:       true,
	})

	old := time.Now().Add(-90 * 24 * time.Hour)
	seedRun(t, m, "run-failed", "failed", old)
	seedRun(t, m, "run-live", "running", time.Time{})

	result, err := lm.Cleanup(false)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(result.Deleted) != 0 || len(result.Archived) != 0 {
		t.Errorf("Deleted = %v, Archived = %v, want none", result.Deleted, result.Archived)
	}
	if len(result.Kept) != 2 {
		t.Errorf("Kept = %v", result.Kept)
	}
}

func TestLifecycle_DryRunTouchesNothing(t *testing.T) {
	m := NewManager(t.TempDir())
	lm := NewLifecycleManager(m, RetentionConfig{RetentionDays: 1, ArchiveAfterDays: 1})

	seedRun(t, m, "run-old", "done", time.Now().Add(-30*24*time.Hour))

	result, err := lm.Cleanup(true)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if len(result.Deleted) != 1 {
		t.Errorf("Deleted = %v", result.Deleted)
	}
	if _, err := os.Stat(m.RunDir("run-old")); err != nil {
		t.Errorf("dry run removed the directory: %v", err)
	}
}

func TestLifecycle_RestoreArchive(t *testing.T) {
	m := NewManager(t.TempDir())
	lm := NewLifecycleManager(m, RetentionConfig{RetentionDays: 60, ArchiveAfterDays: 7})

	seedRun(t, m, "run-stale", "done", time.Now().Add(-10*24*time.Hour))

	if _, err := lm.Cleanup(false); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if err := lm.RestoreArchive("run-stale"); err != nil {
		t.Fatalf("RestoreArchive() error = %v", err)
	}

	data, err := m.Load("run-stale", "out.txt")
	if err != nil {
		t.Fatalf("Load() after restore error = %v", err)
	}
	if string(data) != "output for run-stale" {
		t.Errorf("restored content = %q", data)
	}
}

func TestLifecycle_DiskUsage(t *testing.T) {
	m := NewManager(t.TempDir())
	lm := NewLifecycleManager(m, DefaultRetentionConfig())

	seedRun(t, m, "run-1", "done", time.Now())

	stats, err := lm.DiskUsage()
	if err != nil {
		t.Fatalf("DiskUsage() error = %v", err)
	}
	if stats.RunCount != 1 {
		t.Errorf("RunCount = %d", stats.RunCount)
	}
	if stats.ActiveSize == 0 {
		t.Error("ActiveSize = 0")
	}
}
