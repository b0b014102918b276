package artifact

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/maypok86/otter"
	"github.com/spf13/afero"
)

// Ref identifies one stored artifact. Refs are minted exactly once per saved
// object and never reused, so concurrent writers to the same store can never
// collide.
type Ref string

const DefaultDir = "artifacts/figures"

type StoreOptions struct {
	Dir       string
	CacheSize int
}

func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		Dir:       DefaultDir,
		CacheSize: 256,
	}
}

type StoreOption func(*StoreOptions)

func WithDir(dir string) StoreOption {
	return func(o *StoreOptions) {
		o.Dir = dir
	}
}

func WithCacheSize(size int) StoreOption {
	return func(o *StoreOptions) {
		o.CacheSize = size
	}
}

// Store persists serialized chart objects under a fixed directory, one file
// per artifact, named by a fresh UUID. Saved artifacts are immutable.
type Store struct {
	fs    afero.Fs
	dir   string
	cache *otter.Cache[Ref, []byte]
}

func NewStore(fs afero.Fs, opts ...StoreOption) (*Store, error) {
	options := DefaultStoreOptions()
	for _, opt := range opts {
		opt(options)
	}

	cache, err := otter.MustBuilder[Ref, []byte](options.CacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact cache: %w", err)
	}

	return &Store{
		fs:    fs,
		dir:   options.Dir,
		cache: &cache,
	}, nil
}

// Save writes one serialized object and returns its ref. The directory is
// created on first use.
func (s *Store) Save(data []byte) (Ref, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	ref := Ref(path.Join(s.dir, uuid.NewString()+".pickle"))
	if err := afero.WriteFile(s.fs, string(ref), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	s.cache.Set(ref, data)
	return ref, nil
}

// Get retrieves an artifact by ref.
func (s *Store) Get(ref Ref) ([]byte, error) {
	if data, ok := s.cache.Get(ref); ok {
		return data, nil
	}

	data, err := afero.ReadFile(s.fs, string(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", ref, err)
	}

	s.cache.Set(ref, data)
	return data, nil
}

func (s *Store) Dir() string {
	return s.dir
}
