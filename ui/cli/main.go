// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ao-apps/aoserv-daemon-sub001/buildvars"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/config"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/db"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/i18n"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/packages"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/sites"
)

const modulePath = "github.com/ao-apps/aoserv-daemon-sub001"

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

// session carries the loaded configuration and lazily opened services for
// one command invocation.
type session struct {
	cfg   config.Config
	store *db.BunStore
}

// setup loads the configuration and applies logging and language settings.
func (s *session) setup(cmd *cobra.Command, _ []string) error {
	path, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), path)
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		logging.Debugf("no config file found, running on defaults")
	} else if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	i18n.Init(cfg.Language)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s.cfg = cfg
	return nil
}

func (s *session) teardown(*cobra.Command, []string) {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		logging.Warnf("close database: %v", err)
	}
	s.store = nil
}

// openStore opens the configured database once per session.
func (s *session) openStore() (*db.BunStore, error) {
	if s.store != nil {
		return s.store, nil
	}
	st, err := db.NewStoreFromDSN(s.cfg.Database.Type, s.cfg.Database.Dsn)
	if err != nil {
		return nil, errors.New(i18n.T("cli.error_open_store", err))
	}
	s.store = st
	return st, nil
}

// source returns the configured site source.
func (s *session) source() (sites.Source, error) {
	if s.cfg.Sites.Source == "file" {
		return sites.NewFileSource(s.cfg.Sites.File), nil
	}
	return s.openStore()
}

// checker returns the configured package dependency checker.
func (s *session) checker() packages.Checker {
	if s.cfg.Packages.Checker == "static" {
		return packages.NewStatic(s.cfg.Packages.Installed...)
	}
	return packages.NewRPM()
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// Execute runs the CLI entrypoint. The main package calls this and handles
// the process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command with every subcommand attached. Each
// call returns an independent tree, so tests can run commands in isolation.
func NewRootCmd() *cobra.Command {
	s := &session{}
	cmd := &cobra.Command{
		Use:   "aoserv-tomcat",
		Short: "Reconcile per-site Apache Tomcat installation roots.",
		Long: `aoserv-tomcat brings every site's Tomcat installation root in line with
the layout of its declared Tomcat version: shared release files are linked,
site configuration is generated, and the runtime instances whose files
changed are reported for restart.`,
		SilenceUsage:      true,
		PersistentPreRunE: s.setup,
		PersistentPostRun: s.teardown,
		Version:           compositeVersion(),
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file")
	pf.String("log_level", "info", "Log level (debug, info, warn, error)")
	pf.String("language", "en", `Output language ("en", "de")`)
	pf.String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	pf.String("database.dsn", "/var/lib/aoserv-tomcat/journal.db", "Database connection string (DSN)")
	pf.String("sites.source", "db", `Where site descriptors come from ("db" or "file")`)
	pf.String("sites.file", "/etc/aoserv-tomcat/sites.yaml", "Site inventory file used when sites.source is \"file\"")
	pf.String("versions.base_dir", "/opt", "Directory holding the shared Tomcat release trees")
	pf.String("lock_dir", "/run/aoserv-tomcat", "Directory for per-root lock files")
	pf.String("metrics_file", "", "Write Prometheus textfile metrics here after each run")

	cmd.AddCommand(
		newReconcileCmd(s),
		newVersionsCmd(),
		newSitesCmd(s),
		newHistoryCmd(s),
		newStripBannerCmd(),
		newConfigCmd(s),
		newVersionCmd(),
	)
	return cmd
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	out := v
	if c != "" && c != "dev" {
		out += " (" + c + ")"
	}
	if d != "" {
		out += " built: " + d
	}
	return out
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, build info is read from the
// runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info == nil {
		if local, ok := debug.ReadBuildInfo(); ok {
			info = local
		}
	}
	if info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		if resolvedVersion == "dev" || resolvedVersion == "(devel)" {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
