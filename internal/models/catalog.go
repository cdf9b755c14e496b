// Package models manages the on-disk cache of acoustic model files: a
// static catalog of known models, presence tracking, and HTTPS download
// with streamed progress.
package models

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogManifest []byte

// ErrUnknownModel is returned for names not in the catalog.
var ErrUnknownModel = errors.New("models: unknown model")

// Descriptor is the metadata record for one model.
type Descriptor struct {
	Name        string `yaml:"name"`
	FileName    string `yaml:"file"`
	SizeBytes   int64  `yaml:"size_bytes"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`

	// Path is the on-disk location once downloaded.
	Path string `yaml:"-"`
	// Present reports whether the file exists in the cache.
	Present bool `yaml:"-"`
	// Loaded reports whether this model is loaded in the engine.
	Loaded bool `yaml:"-"`
}

// Catalog is the set of known models rooted at a cache directory.
type Catalog struct {
	dir string

	mu      sync.Mutex
	entries []Descriptor
}

// NewCatalog parses the embedded manifest and stats the cache directory.
func NewCatalog(dir string) (*Catalog, error) {
	var entries []Descriptor
	if err := yaml.Unmarshal(catalogManifest, &entries); err != nil {
		return nil, fmt.Errorf("models: parsing catalog manifest: %w", err)
	}
	c := &Catalog{dir: dir, entries: entries}
	c.Refresh()
	return c, nil
}

// Dir returns the cache directory.
func (c *Catalog) Dir() string { return c.dir }

// Refresh re-stats the cache directory, updating Path and Present on every
// descriptor.
func (c *Catalog) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		path := filepath.Join(c.dir, c.entries[i].FileName)
		c.entries[i].Path = path
		info, err := os.Stat(path)
		c.entries[i].Present = err == nil && info.Size() > 0
	}
}

// List returns a copy of all descriptors.
func (c *Catalog) List() []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Descriptor, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get returns the descriptor for a logical name.
func (c *Catalog) Get(name string) (Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.entries {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// SetLoaded marks the named model as the loaded one and clears the flag on
// every other.
func (c *Catalog) SetLoaded(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		c.entries[i].Loaded = c.entries[i].Name == name
	}
}

// markPresent records a completed download.
func (c *Catalog) markPresent(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].Name == name {
			c.entries[i].Present = true
		}
	}
}
