// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package restart collects the runtime instances that must be restarted
// after a reconciliation pass.
package restart

import (
	"strings"
	"sync"

	"github.com/juju/collections/set"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
)

const (
	sitePrefix   = "site:"
	sharedPrefix = "shared:"
)

// Target identifies one runtime instance: a site's dedicated instance or a
// shared instance serving several sites.
type Target string

// ForSite returns the restart target that serves site.
func ForSite(site model.Site) Target {
	if site.IsShared() {
		return Target(sharedPrefix + site.SharedInstance)
	}
	return Target(sitePrefix + site.Name)
}

// Shared reports whether t is a shared instance.
func (t Target) Shared() bool {
	return strings.HasPrefix(string(t), sharedPrefix)
}

// Name returns the site or instance name without its prefix.
func (t Target) Name() string {
	s := string(t)
	if name, ok := strings.CutPrefix(s, sharedPrefix); ok {
		return name
	}
	return strings.TrimPrefix(s, sitePrefix)
}

func (t Target) String() string { return string(t) }

// Aggregator is an insertion-only set of restart targets, safe for
// concurrent use by parallel passes.
type Aggregator struct {
	mu      sync.Mutex
	targets set.Strings
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{targets: set.NewStrings()}
}

// MarkDirty records that t must be restarted. Marking twice is a no-op.
func (a *Aggregator) MarkDirty(t Target) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.targets == nil {
		a.targets = set.NewStrings()
	}
	a.targets.Add(string(t))
}

// Len returns the number of pending targets.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targets.Size()
}

// Drain returns the pending targets in sorted order and empties the set.
func (a *Aggregator) Drain() []Target {
	a.mu.Lock()
	defer a.mu.Unlock()
	values := a.targets.SortedValues()
	a.targets = set.NewStrings()
	out := make([]Target, 0, len(values))
	for _, v := range values {
		out = append(out, Target(v))
	}
	return out
}
