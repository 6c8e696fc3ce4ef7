// Package goldenstore implements the Golden Sample Store (C4): per
// (product, roi_idx) reference-image management with atomic promote/restore
// via filesystem rename and per-key mutual exclusion.
//
// The teacher's internal/state/lock.go takes an advisory, cross-process file
// lock (O_EXCL file creation, jittered retry) because agentcli's state
// directory can be touched by independent OS processes. This service is a
// single long-lived process, so the same serialization intent is achieved
// with an in-memory map of *sync.Mutex keyed by "<product>/<idx>" (itself
// guarded by a mutex) —
// the in-process analogue of the teacher's lock file, and the atomic
// rename discipline from internal/state/save.go carries over unchanged.
package goldenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/aoipipeline/inspectord/internal/apierr"
)

const bestGoldenName = "best_golden.jpg"

var backupNamePattern = regexp.MustCompile(`^original_\d+_old_best\.jpg$`)

// SampleKind distinguishes the two file roles a golden-sample directory
// can contain.
type SampleKind string

const (
	KindBest   SampleKind = "best_golden"
	KindBackup SampleKind = "backup"
)

// Sample describes one file in a ROI's golden-sample directory.
type Sample struct {
	Name    string
	Kind    SampleKind
	IsBest  bool
	Size    int64
	ModTime time.Time
}

// Store manages golden samples under <root>/products/<product>/golden_rois/roi_<idx>/.
type Store struct {
	root string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewStore(root string) *Store {
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) keyLock(product string, idx int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", product, idx)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *Store) roiDir(product string, idx int) string {
	return filepath.Join(s.root, "products", product, "golden_rois", fmt.Sprintf("roi_%d", idx))
}

func (s *Store) bestPath(product string, idx int) string {
	return filepath.Join(s.roiDir(product, idx), bestGoldenName)
}

// ReadBest returns the current best golden sample's bytes and path.
func (s *Store) ReadBest(product string, idx int) ([]byte, string, error) {
	path := s.bestPath(product, idx)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apierr.Newf(apierr.KindNotFound, "no golden sample for product %q roi %d", product, idx)
		}
		return nil, "", apierr.Wrap(apierr.KindInternal, "read golden sample", err)
	}
	return data, path, nil
}

// ReadSample reads any named sample (best or backup) for (product, idx).
func (s *Store) ReadSample(product string, idx int, name string) ([]byte, error) {
	path := filepath.Join(s.roiDir(product, idx), name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.Newf(apierr.KindNotFound, "sample %q not found", name)
		}
		return nil, apierr.Wrap(apierr.KindInternal, "read sample", err)
	}
	return data, nil
}

// ListAll returns every sample (best + backups) for (product, idx), ordered
// best-first then backups newest-first.
func (s *Store) ListAll(product string, idx int) ([]Sample, error) {
	dir := s.roiDir(product, idx)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Sample{}, nil
		}
		return nil, apierr.Wrap(apierr.KindInternal, "list golden samples", err)
	}
	var samples []Sample
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		switch {
		case name == bestGoldenName:
			samples = append(samples, Sample{Name: name, Kind: KindBest, IsBest: true, Size: info.Size(), ModTime: info.ModTime()})
		case backupNamePattern.MatchString(name):
			samples = append(samples, Sample{Name: name, Kind: KindBackup, Size: info.Size(), ModTime: info.ModTime()})
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].IsBest != samples[j].IsBest {
			return samples[i].IsBest
		}
		return samples[i].ModTime.After(samples[j].ModTime)
	})
	return samples, nil
}

// WriteNewBest backs up the current best (if any) to a fresh
// original_<unix_ts>_old_best.jpg, then writes bytes as the new best.
// Returns the backup name created, or "" if there was no prior best.
func (s *Store) WriteNewBest(product string, idx int, bytes []byte) (string, error) {
	lock := s.keyLock(product, idx)
	lock.Lock()
	defer lock.Unlock()
	return s.writeNewBestLocked(product, idx, bytes)
}

func (s *Store) writeNewBestLocked(product string, idx int, data []byte) (string, error) {
	dir := s.roiDir(product, idx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apierr.Wrap(apierr.KindInternal, "create roi directory", err)
	}
	best := s.bestPath(product, idx)
	backupName, err := s.backupExistingBestLocked(dir, best)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(dir, best, data); err != nil {
		return "", apierr.Wrap(apierr.KindInternal, "write new best golden", err)
	}
	return backupName, nil
}

// backupExistingBestLocked renames an existing best_golden.jpg to a
// fresh timestamped backup name. Returns "" if there was nothing to back up.
func (s *Store) backupExistingBestLocked(dir, best string) (string, error) {
	if _, err := os.Stat(best); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apierr.Wrap(apierr.KindInternal, "stat current best golden", err)
	}
	backupName := fmt.Sprintf("original_%d_old_best.jpg", time.Now().Unix())
	backupPath := filepath.Join(dir, backupName)
	// Guard against a same-second collision by nudging the timestamp.
	for i := 0; ; i++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupName = fmt.Sprintf("original_%d_old_best.jpg", time.Now().Unix()+int64(i)+1)
		backupPath = filepath.Join(dir, backupName)
	}
	if err := os.Rename(best, backupPath); err != nil {
		return "", apierr.Wrap(apierr.KindInternal, "back up current best golden", err)
	}
	return backupName, nil
}

// Promote validates backupName, swaps it in as the new best (backing up the
// current best first), and returns the resulting best bytes.
func (s *Store) Promote(product string, idx int, backupName string) ([]byte, error) {
	if !backupNamePattern.MatchString(backupName) {
		return nil, apierr.Newf(apierr.KindValidation, "invalid backup name %q", backupName)
	}
	lock := s.keyLock(product, idx)
	lock.Lock()
	defer lock.Unlock()
	return s.swapInLocked(product, idx, backupName)
}

// Restore is equivalent to Promote, provided as a distinct operation name
// for rollback call sites per base spec §4.4.
func (s *Store) Restore(product string, idx int, backupName string) ([]byte, error) {
	return s.Promote(product, idx, backupName)
}

func (s *Store) swapInLocked(product string, idx int, backupName string) ([]byte, error) {
	dir := s.roiDir(product, idx)
	backupPath := filepath.Join(dir, backupName)
	data, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.Newf(apierr.KindNotFound, "backup %q not found", backupName)
		}
		return nil, apierr.Wrap(apierr.KindInternal, "read backup", err)
	}
	best := s.bestPath(product, idx)
	if _, err := s.backupExistingBestLocked(dir, best); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(dir, best, data); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "promote backup to best", err)
	}
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return nil, apierr.Wrap(apierr.KindInternal, "remove promoted backup", err)
	}
	return data, nil
}

// Delete removes a named sample, refusing to delete best_golden.jpg when it
// is the only sample present (CONFLICT).
func (s *Store) Delete(product string, idx int, name string) error {
	lock := s.keyLock(product, idx)
	lock.Lock()
	defer lock.Unlock()

	dir := s.roiDir(product, idx)
	samples, err := s.ListAll(product, idx)
	if err != nil {
		return err
	}
	if name == bestGoldenName && len(samples) <= 1 {
		return apierr.New(apierr.KindConflict, "cannot delete the only golden sample")
	}
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apierr.Newf(apierr.KindNotFound, "sample %q not found", name)
		}
		return apierr.Wrap(apierr.KindInternal, "delete sample", err)
	}
	return nil
}

// RenameFolders renames roi_<old> -> roi_<new> for each mapping entry,
// atomically and only after verifying no destination collides with an
// existing (and un-renamed) directory.
func (s *Store) RenameFolders(product string, mapping map[int]int) error {
	base := filepath.Join(s.root, "products", product, "golden_rois")
	for oldIdx, newIdx := range mapping {
		dst := filepath.Join(base, fmt.Sprintf("roi_%d", newIdx))
		if _, isRenamed := mapping[newIdx]; !isRenamed {
			if _, err := os.Stat(dst); err == nil {
				return apierr.Newf(apierr.KindConflict, "rename target roi_%d already exists", newIdx)
			}
		}
		_ = oldIdx
	}
	for oldIdx, newIdx := range mapping {
		src := filepath.Join(base, fmt.Sprintf("roi_%d", oldIdx))
		dst := filepath.Join(base, fmt.Sprintf("roi_%d", newIdx))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return apierr.Wrap(apierr.KindInternal, "rename roi folder", err)
		}
	}
	return nil
}

func writeFileAtomic(dir, dstPath string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dstPath); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	d, err := os.Open(dir)
	if err != nil {
		return nil // best-effort dir fsync
	}
	defer func() { _ = d.Close() }()
	_ = d.Sync()
	return nil
}
