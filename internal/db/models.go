// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
)

// SiteModel maps the `tomcat_sites` table for Bun queries.
type SiteModel struct {
	bun.BaseModel  `bun:"table:tomcat_sites"`
	ID             int64     `bun:"id,pk,autoincrement"`
	Name           string    `bun:"name,notnull,unique"`
	Root           string    `bun:"root,notnull"`
	UID            int       `bun:"uid,notnull"`
	GID            int       `bun:"gid,notnull"`
	Manual         bool      `bun:"manual,notnull"`
	Version        string    `bun:"version,notnull"`
	SharedInstance string    `bun:"shared_instance,notnull"`
	HTTPPort       int       `bun:"http_port,notnull"`
	ShutdownPort   int       `bun:"shutdown_port,notnull"`
	Disabled       bool      `bun:"disabled,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

// PassModel maps the `reconcile_passes` journal table.
type PassModel struct {
	bun.BaseModel   `bun:"table:reconcile_passes"`
	ID              int64     `bun:"id,pk,autoincrement"`
	PassID          string    `bun:"pass_id,notnull"`
	Site            string    `bun:"site,notnull"`
	Version         string    `bun:"version,notnull"`
	Upgrade         bool      `bun:"upgrade,notnull"`
	RestartRequired bool      `bun:"restart_required,notnull"`
	Changed         int       `bun:"changed,notnull"`
	Error           string    `bun:"error,notnull"`
	StartedAt       time.Time `bun:"started_at,notnull"`
	FinishedAt      time.Time `bun:"finished_at,notnull"`
}

func siteModelToModel(m SiteModel) model.Site {
	return model.Site{
		Name:           m.Name,
		Root:           m.Root,
		UID:            m.UID,
		GID:            m.GID,
		Manual:         m.Manual,
		Version:        m.Version,
		SharedInstance: m.SharedInstance,
		HTTPPort:       m.HTTPPort,
		ShutdownPort:   m.ShutdownPort,
		Disabled:       m.Disabled,
	}
}

func siteToModel(s model.Site) SiteModel {
	return SiteModel{
		Name:           s.Name,
		Root:           s.Root,
		UID:            s.UID,
		GID:            s.GID,
		Manual:         s.Manual,
		Version:        s.Version,
		SharedInstance: s.SharedInstance,
		HTTPPort:       s.HTTPPort,
		ShutdownPort:   s.ShutdownPort,
		Disabled:       s.Disabled,
	}
}

func passModelToModel(m PassModel) model.PassRecord {
	return model.PassRecord{
		ID:              m.ID,
		PassID:          m.PassID,
		Site:            m.Site,
		Version:         m.Version,
		Upgrade:         m.Upgrade,
		RestartRequired: m.RestartRequired,
		Changed:         m.Changed,
		Error:           m.Error,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
	}
}
