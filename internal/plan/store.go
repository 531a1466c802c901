package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Store is a file-backed catalog of plans.
//
// The catalog is materialized lazily: construction does no I/O, and every
// public method loads the backing file on first use. Mutating methods
// rewrite the whole file immediately after the in-memory edit.
//
// Store is not safe for concurrent use; the CLI runs one operation per
// invocation.
type Store struct {
	path   string
	plans  map[string]Plan
	loaded bool
}

// NewStore returns a store backed by the file at path. No I/O happens
// until the first operation.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// load reads the backing file once. A missing file is an empty catalog
// (the first run has nothing to load); any other read or parse failure is
// ErrStoreUnavailable.
func (s *Store) load() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.plans = map[string]Plan{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrStoreUnavailable, s.path, err)
	}

	plans := map[string]Plan{}
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrStoreUnavailable, s.path, err)
	}
	for name, p := range plans {
		if p == nil {
			plans[name] = Plan{}
		}
	}

	s.plans = plans
	s.loaded = true
	return nil
}

// List returns all plan names in sorted order.
func (s *Store) List() ([]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.plans))
	for name := range s.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Get returns a copy of the named plan, or ErrPlanNotFound.
func (s *Store) Get(name string) (Plan, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	p, ok := s.plans[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlanNotFound, name)
	}
	return p.Clone(), nil
}

// Create adds the named plan, or merges constants into it if it already
// exists. Supplied constants overwrite existing ones key-by-key.
func (s *Store) Create(name string, constants Plan) error {
	if err := s.load(); err != nil {
		return err
	}
	key := NormalizeName(name)
	p, ok := s.plans[key]
	if !ok {
		p = Plan{}
		s.plans[key] = p
	}
	for k, v := range constants {
		p[k] = v
	}
	return s.Persist()
}

// Update applies a set of changes to the named plan, creating it empty if
// it does not exist. A non-nil value sets or overwrites the constant; a
// nil value removes it. Removing a constant that is not present fails
// with ErrKeyNotFound, and in that case nothing is persisted.
func (s *Store) Update(name string, changes map[string]*string) error {
	if err := s.load(); err != nil {
		return err
	}
	key := NormalizeName(name)
	p, ok := s.plans[key]
	if !ok {
		p = Plan{}
	}

	// Validate deletions before touching anything.
	for k, v := range changes {
		if v == nil {
			if _, present := p[k]; !present {
				return fmt.Errorf("%w: %q in plan %q", ErrKeyNotFound, k, name)
			}
		}
	}

	s.plans[key] = p
	for k, v := range changes {
		if v == nil {
			delete(p, k)
		} else {
			p[k] = *v
		}
	}
	return s.Persist()
}

// UnsetKeys removes the given constant keys from the named plan. The plan
// and every key must exist; nothing is persisted on failure.
func (s *Store) UnsetKeys(name string, keys []string) error {
	if err := s.load(); err != nil {
		return err
	}
	p, ok := s.plans[NormalizeName(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, name)
	}
	for _, k := range keys {
		if _, present := p[k]; !present {
			return fmt.Errorf("%w: %q in plan %q", ErrKeyNotFound, k, name)
		}
	}
	for _, k := range keys {
		delete(p, k)
	}
	return s.Persist()
}

// Delete removes the whole plan, or fails with ErrPlanNotFound.
//
// Domains referencing the plan by name are not touched: the reference
// goes stale and a later Get on it reports ErrPlanNotFound.
func (s *Store) Delete(name string) error {
	if err := s.load(); err != nil {
		return err
	}
	key := NormalizeName(name)
	if _, ok := s.plans[key]; !ok {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, name)
	}
	delete(s.plans, key)
	return s.Persist()
}

// Persist serializes the whole catalog back to the backing file. The
// write goes to a temporary file in the target directory followed by a
// rename, so readers never observe a partial catalog.
func (s *Store) Persist() error {
	if err := s.load(); err != nil {
		return err
	}

	data, err := yaml.Marshal(s.plans)
	if err != nil {
		return fmt.Errorf("marshal plan catalog: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plan store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp plan file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp plan file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp plan file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp plan file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace plan file: %w", err)
	}
	return nil
}
