package goldenstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteNewBestThenReadBest(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	backup, err := s.WriteNewBest("P1", 1, []byte("first"))
	if err != nil {
		t.Fatalf("WriteNewBest: %v", err)
	}
	if backup != "" {
		t.Fatalf("expected no backup on first write, got %q", backup)
	}

	data, path, err := s.ReadBest("P1", 1)
	if err != nil {
		t.Fatalf("ReadBest: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("ReadBest data = %q, want %q", data, "first")
	}
	if filepath.Base(path) != bestGoldenName {
		t.Fatalf("ReadBest path = %q", path)
	}
}

func TestWriteNewBestBacksUpPrevious(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if _, err := s.WriteNewBest("P1", 1, []byte("v1")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	backup, err := s.WriteNewBest("P1", 1, []byte("v2"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if backup == "" {
		t.Fatal("expected a backup name on second write")
	}
	if !backupNamePattern.MatchString(backup) {
		t.Fatalf("backup name %q does not match expected pattern", backup)
	}

	samples, err := s.ListAll("P1", 1)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("ListAll returned %d samples, want 2", len(samples))
	}
	if !samples[0].IsBest {
		t.Fatalf("expected best-first ordering, got %+v", samples)
	}
}

func TestPromoteSwapsBackupIntoBest(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if _, err := s.WriteNewBest("P1", 1, []byte("v1")); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	backup, err := s.WriteNewBest("P1", 1, []byte("v2"))
	if err != nil {
		t.Fatalf("write v2: %v", err)
	}

	promoted, err := s.Promote("P1", 1, backup)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if string(promoted) != "v1" {
		t.Fatalf("Promote returned %q, want %q", promoted, "v1")
	}

	data, _, err := s.ReadBest("P1", 1)
	if err != nil {
		t.Fatalf("ReadBest after promote: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("best after promote = %q, want %q", data, "v1")
	}

	if _, err := os.Stat(filepath.Join(dir, "products", "P1", "golden_rois", "roi_1", backup)); !os.IsNotExist(err) {
		t.Fatalf("expected promoted backup file to be consumed, stat err = %v", err)
	}
}

func TestPromoteRejectsInvalidBackupName(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.Promote("P1", 1, "not-a-backup.jpg"); err == nil {
		t.Fatal("expected validation error for malformed backup name")
	}
}

func TestDeleteRefusesLastSample(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.WriteNewBest("P1", 1, []byte("only")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Delete("P1", 1, bestGoldenName); err == nil {
		t.Fatal("expected CONFLICT deleting the only sample")
	}
}

func TestDeleteBackupSucceeds(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.WriteNewBest("P1", 1, []byte("v1")); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	backup, err := s.WriteNewBest("P1", 1, []byte("v2"))
	if err != nil {
		t.Fatalf("write v2: %v", err)
	}
	if err := s.Delete("P1", 1, backup); err != nil {
		t.Fatalf("Delete backup: %v", err)
	}
	samples, err := s.ListAll("P1", 1)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample after deleting backup, got %d", len(samples))
	}
}

func TestReadBestMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, _, err := s.ReadBest("nope", 1); err == nil {
		t.Fatal("expected NOT_FOUND for missing product/idx")
	}
}

func TestRenameFoldersMovesGoldenDirectory(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.WriteNewBest("P1", 5, []byte("data")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.RenameFolders("P1", map[int]int{5: 9}); err != nil {
		t.Fatalf("RenameFolders: %v", err)
	}
	data, _, err := s.ReadBest("P1", 9)
	if err != nil {
		t.Fatalf("ReadBest after rename: %v", err)
	}
	if string(data) != "data" {
		t.Fatalf("data after rename = %q", data)
	}
	if _, _, err := s.ReadBest("P1", 5); err == nil {
		t.Fatal("expected old idx to no longer have a golden sample")
	}
}

func TestListAllOnMissingDirectoryReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	samples, err := s.ListAll("ghost", 1)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("expected empty list, got %v", samples)
	}
}
