// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/sites"
)

// PassFilter narrows ListPasses. Zero values mean "no restriction".
type PassFilter struct {
	Site  string
	Limit int
}

// BunStore is the bun-backed store shared by all backends.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

// BunDB exposes the underlying *bun.DB for tests and maintenance.
func (s *BunStore) BunDB() *bun.DB { return s.bun }

// Close releases the connection pool.
func (s *BunStore) Close() error { return s.bun.Close() }

// Sites returns every site ordered by name.
func (s *BunStore) Sites(ctx context.Context) ([]model.Site, error) {
	var rows []SiteModel
	if err := s.bun.NewSelect().Model(&rows).OrderExpr("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out := make([]model.Site, 0, len(rows))
	for _, r := range rows {
		out = append(out, siteModelToModel(r))
	}
	return out, nil
}

// Site returns one site by name.
func (s *BunStore) Site(ctx context.Context, name string) (model.Site, error) {
	var row SiteModel
	err := s.bun.NewSelect().Model(&row).Where("name = ?", name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Site{}, fmt.Errorf("%w: %s", sites.ErrSiteNotFound, name)
	}
	if err != nil {
		return model.Site{}, fmt.Errorf("get site %s: %w", name, err)
	}
	return siteModelToModel(row), nil
}

// UpsertSite inserts site or replaces the stored descriptor with the same
// name. It reports whether a new row was created.
func (s *BunStore) UpsertSite(ctx context.Context, site model.Site) (bool, error) {
	if err := site.Validate(); err != nil {
		return false, err
	}
	created := false
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing SiteModel
		err := tx.NewSelect().Model(&existing).Where("name = ?", site.Name).Limit(1).Scan(ctx)
		row := siteToModel(site)
		row.UpdatedAt = time.Now().UTC()
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			_, err = tx.NewInsert().Model(&row).Exec(ctx)
			return MapDBError(site.Name, err)
		case err != nil:
			return err
		}
		row.ID = existing.ID
		_, err = tx.NewUpdate().Model(&row).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert site %s: %w", site.Name, err)
	}
	return created, nil
}

// DeleteSite removes a site descriptor. Files below its root are untouched.
func (s *BunStore) DeleteSite(ctx context.Context, name string) error {
	res, err := s.bun.NewDelete().Model((*SiteModel)(nil)).Where("name = ?", name).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete site %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", sites.ErrSiteNotFound, name)
	}
	return nil
}

// RecordPass appends a journal row.
func (s *BunStore) RecordPass(ctx context.Context, rec model.PassRecord) error {
	row := PassModel{
		PassID:          rec.PassID,
		Site:            rec.Site,
		Version:         rec.Version,
		Upgrade:         rec.Upgrade,
		RestartRequired: rec.RestartRequired,
		Changed:         rec.Changed,
		Error:           rec.Error,
		StartedAt:       rec.StartedAt.UTC(),
		FinishedAt:      rec.FinishedAt.UTC(),
	}
	if _, err := s.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("record pass %s for %s: %w", rec.PassID, rec.Site, err)
	}
	return nil
}

// ListPasses returns journal rows, newest first.
func (s *BunStore) ListPasses(ctx context.Context, f PassFilter) ([]model.PassRecord, error) {
	var rows []PassModel
	q := s.bun.NewSelect().Model(&rows).OrderExpr("started_at DESC").OrderExpr("id DESC")
	if f.Site != "" {
		q = q.Where("site = ?", f.Site)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	out := make([]model.PassRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, passModelToModel(r))
	}
	return out, nil
}
