// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
)

// Plan is an ordered list of actions for one version's layout. Directories
// must be declared before the entries placed inside them.
type Plan []Action

// Change records one action that mutated the filesystem.
type Change struct {
	Kind Kind
	Path string
}

// Result summarizes an applied plan.
type Result struct {
	Changes []Change
}

// RestartRequired reports whether any runtime visible artifact changed.
func (r Result) RestartRequired() bool {
	for _, c := range r.Changes {
		if c.Kind.RuntimeVisible() {
			return true
		}
	}
	return false
}

// Paths returns the relative paths of all changes.
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Changes))
	for _, c := range r.Changes {
		out = append(out, c.Path)
	}
	return out
}

// Merge appends the changes of other.
func (r Result) Merge(other Result) Result {
	return Result{Changes: append(slices.Clip(r.Changes), other.Changes...)}
}

// Validate rejects paths that leave the root and paths declared twice.
// A symlink-all action manages the entries below its path, so it may follow
// the mkdir of the same directory.
func (p Plan) Validate() error {
	seen := make(map[string]bool, len(p))
	for _, a := range p {
		clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(a.Path())))
		if !filepath.IsLocal(filepath.FromSlash(a.Path())) {
			return &ActionError{Kind: a.Kind(), Path: a.Path(), Err: ErrPathEscapesRoot}
		}
		if a.Kind() == KindSymlinkAll {
			continue
		}
		if seen[clean] {
			return &ActionError{Kind: a.Kind(), Path: a.Path(), Err: ErrDuplicatePath}
		}
		seen[clean] = true
	}
	return nil
}

// Filter returns the actions whose kind is one of kinds, in plan order.
func (p Plan) Filter(kinds ...Kind) Plan {
	var out Plan
	for _, a := range p {
		if slices.Contains(kinds, a.Kind()) {
			out = append(out, a)
		}
	}
	return out
}

// Apply runs every action in order. The first failure stops the plan and is
// returned as an *ActionError; actions already committed stay committed.
func (p Plan) Apply(ctx context.Context, env *Env) (Result, error) {
	var res Result
	if err := p.Validate(); err != nil {
		return res, err
	}
	for _, a := range p {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("plan interrupted before %s: %w", a.Path(), err)
		}
		outcome, err := a.Apply(env)
		if outcome == Changed {
			res.Changes = append(res.Changes, Change{Kind: a.Kind(), Path: a.Path()})
		}
		if err != nil {
			return res, &ActionError{Kind: a.Kind(), Path: a.Path(), Err: err}
		}
	}
	return res, nil
}
