// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/restart"
)

// Outcome is one site's share of a batch.
type Outcome struct {
	Site    model.Site
	Result  model.ReconciliationResult
	Err     error
	Skipped bool
}

// Batch is the report of ReconcileAll.
type Batch struct {
	PassID   string
	Outcomes []Outcome // In input order.
	Restarts []restart.Target
}

// Failed returns the outcomes that ended with an error.
func (b Batch) Failed() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// ReconcileAll reconciles every enabled site, at most Parallel at a time.
// A failing site never stops the others. The restart set accumulated by the
// batch is drained into the report.
func (r *Reconciler) ReconcileAll(ctx context.Context, sites []model.Site, isUpgrade bool) Batch {
	batch := Batch{PassID: NewPassID(), Outcomes: make([]Outcome, len(sites))}

	limit := r.Parallel
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, site := range sites {
		batch.Outcomes[i].Site = site
		if site.Disabled {
			batch.Outcomes[i].Skipped = true
			logging.Infof("skipping disabled site %s", site)
			continue
		}
		g.Go(func() error {
			res, err := r.reconcile(gctx, batch.PassID, site, isUpgrade)
			batch.Outcomes[i].Result = res
			batch.Outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	batch.Restarts = r.Restarts.Drain()
	return batch
}
