// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sites reads site descriptors. The reconciler never creates or
// removes a site; it only consumes what a Source reports.
package sites

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
)

// ErrSiteNotFound is returned for an unknown site name.
var ErrSiteNotFound = errors.New("site not found")

// Source lists site descriptors.
type Source interface {
	Sites(ctx context.Context) ([]model.Site, error)
	Site(ctx context.Context, name string) (model.Site, error)
}

// Inventory is the on-disk layout of a site inventory file.
type Inventory struct {
	Sites []model.Site `yaml:"sites"`
}

// ParseInventory decodes and validates an inventory document.
func ParseInventory(data []byte) ([]model.Site, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse site inventory: %w", err)
	}
	seen := make(map[string]bool, len(inv.Sites))
	for _, s := range inv.Sites {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("site %s is listed twice", s.Name)
		}
		seen[s.Name] = true
	}
	sort.Slice(inv.Sites, func(i, j int) bool { return inv.Sites[i].Name < inv.Sites[j].Name })
	return inv.Sites, nil
}

// FileSource reads sites from a YAML inventory file on every call, so edits
// are picked up by the next pass.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the inventory file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Sites(ctx context.Context) ([]model.Site, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read site inventory: %w", err)
	}
	return ParseInventory(data)
}

func (f *FileSource) Site(ctx context.Context, name string) (model.Site, error) {
	all, err := f.Sites(ctx)
	if err != nil {
		return model.Site{}, err
	}
	for _, s := range all {
		if s.Name == name {
			return s, nil
		}
	}
	return model.Site{}, fmt.Errorf("%w: %s", ErrSiteNotFound, name)
}
