package roiconfig

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aoipipeline/inspectord/internal/apierr"
)

// Store loads, validates, caches, and atomically persists per-product ROI
// configuration under <root>/products/<product_id>/rois_config_<product_id>.json.
//
// The cache is a read-mostly, writer-takes-all design: each product's latest
// validated config is published behind an atomic.Pointer so concurrent
// readers never block on a mutex; Save acquires writeMu only for the
// duration of the filesystem write and then swaps the pointer.
type Store struct {
	root string

	writeMu sync.Mutex
	cache   sync.Map // productID -> *atomic.Pointer[ProductConfig]
}

// NewStore constructs a Store rooted at <root>/products.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) productDir(productID string) string {
	return filepath.Join(s.root, "products", productID)
}

func (s *Store) configPath(productID string) string {
	return filepath.Join(s.productDir(productID), "rois_config_"+productID+".json")
}

func (s *Store) slot(productID string) *atomic.Pointer[ProductConfig] {
	v, _ := s.cache.LoadOrStore(productID, &atomic.Pointer[ProductConfig]{})
	return v.(*atomic.Pointer[ProductConfig])
}

// List returns the product ids known to the store, derived from the
// products root directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "products"))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, apierr.Wrap(apierr.KindInternal, "list products", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load returns the validated, canonical configuration for productID,
// preferring the cached snapshot when present.
func (s *Store) Load(productID string) (ProductConfig, error) {
	if cached := s.slot(productID).Load(); cached != nil {
		return *cached, nil
	}
	data, err := os.ReadFile(s.configPath(productID))
	if err != nil {
		if os.IsNotExist(err) {
			return ProductConfig{}, apierr.Newf(apierr.KindNotFound, "product %q has no configuration", productID)
		}
		return ProductConfig{}, apierr.Wrap(apierr.KindInternal, "read product configuration", err)
	}
	cfg, err := UnmarshalConfig(data)
	if err != nil {
		return ProductConfig{}, apierr.Wrap(apierr.KindInternal, "parse product configuration", err)
	}
	if err := Validate(cfg); err != nil {
		return ProductConfig{}, err
	}
	s.slot(productID).Store(&cfg)
	return cfg, nil
}

// Save validates, canonicalizes, and atomically persists cfg, then
// publishes it to the cache, invalidating any prior snapshot.
//
// Atomicity follows the teacher's writeFileAtomic: a temp file is created in
// the same directory as the destination (so the rename is same-filesystem),
// written, fsynced, closed, then renamed over the destination and the
// directory is fsynced.
func (s *Store) Save(cfg ProductConfig) (ProductConfig, error) {
	if err := Validate(cfg); err != nil {
		return ProductConfig{}, err
	}

	data, err := MarshalConfig(cfg)
	if err != nil {
		return ProductConfig{}, apierr.Wrap(apierr.KindInternal, "marshal product configuration", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dir := s.productDir(cfg.ProductID)
	if err := writeFileAtomic(dir, s.configPath(cfg.ProductID), data); err != nil {
		return ProductConfig{}, apierr.Wrap(apierr.KindInternal, "persist product configuration", err)
	}

	s.slot(cfg.ProductID).Store(&cfg)
	return cfg, nil
}

// CreateProduct creates an empty configuration for a new product id,
// failing with CONFLICT if one already exists.
func (s *Store) CreateProduct(productID, description string, deviceCount int) (ProductConfig, error) {
	if _, err := os.Stat(s.configPath(productID)); err == nil {
		return ProductConfig{}, apierr.Newf(apierr.KindConflict, "product %q already exists", productID)
	}
	cfg := ProductConfig{
		ProductID:   productID,
		Description: description,
		DeviceCount: deviceCount,
		ROIs:        []ROI{},
	}
	return s.Save(cfg)
}

// writeFileAtomic writes data to dstPath via a same-directory temp file,
// fsyncs it, renames it into place, then fsyncs the containing directory.
// Adapted from the teacher's internal/state/save.go.
func writeFileAtomic(dir, dstPath string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
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
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}
