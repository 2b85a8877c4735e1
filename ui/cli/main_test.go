package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/tomcat"
)

type fixture struct {
	dir    string
	config string
	root   string
}

// newFixture writes a config file, a site inventory and a seeded 9.0 release
// tree below a temp dir. source selects the site source.
func newFixture(t *testing.T, source string) fixture {
	t.Helper()
	return newFixtureWith(t, source, true)
}

func newFixtureWith(t *testing.T, source string, withPackages bool) fixture {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	strat, err := tomcat.Default().Select("9.0.X", "site1")
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "opt")
	for _, a := range strat.Plan() {
		switch a.Kind() {
		case install.KindSymlink, install.KindCopy:
			writeTestFile(t, filepath.Join(base, strat.VersionDir(), a.Path()), "release file "+a.Path())
		case install.KindSymlinkAll:
			writeTestFile(t, filepath.Join(base, strat.VersionDir(), a.Path(), "catalina.jar"), "jar")
		}
	}

	root := filepath.Join(dir, "srv", "site1")
	inventory := fmt.Sprintf("sites:\n  - name: site1\n    root: %s\n    uid: %d\n    gid: %d\n    version: 9.0.X\n",
		root, os.Getuid(), os.Getgid())
	writeTestFile(t, filepath.Join(dir, "sites.yaml"), inventory)

	var installed strings.Builder
	if withPackages {
		for _, p := range strat.RequiredPackages() {
			fmt.Fprintf(&installed, "    - %s\n", p)
		}
	}
	cfg := fmt.Sprintf(`database:
  type: sqlite
  dsn: %s
sites:
  source: %s
  file: %s
versions:
  base_dir: %s
packages:
  checker: static
  installed:
%slock_dir: %s
metrics_file: %s
language: en
log_level: error
`, filepath.Join(dir, "journal.db"), source, filepath.Join(dir, "sites.yaml"), base,
		installed.String(), filepath.Join(dir, "lock"), filepath.Join(dir, "metrics.prom"))
	path := filepath.Join(dir, "aoserv-tomcat.yaml")
	writeTestFile(t, path, cfg)
	return fixture{dir: dir, config: path, root: root}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, f fixture, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", f.config))
	err := cmd.Execute()
	return out.String(), err
}

func TestReconcile_ProvisionsThenConverges(t *testing.T) {
	f := newFixture(t, "file")

	out, err := run(t, f, "reconcile", "site1")
	if err != nil {
		t.Fatalf("reconcile failed: %v\n%s", err, out)
	}
	for _, want := range []string{"site1", "provisioned", "Restart required: site:site1", "1 site(s), 0 failed, 0 skipped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(f.root, "conf", "server.xml")); err != nil {
		t.Fatalf("expected generated server.xml: %v", err)
	}
	metricsText, err := os.ReadFile(filepath.Join(f.dir, "metrics.prom"))
	if err != nil {
		t.Fatalf("expected metrics textfile: %v", err)
	}
	if !strings.Contains(string(metricsText), "aoserv_tomcat_passes_total") {
		t.Fatalf("unexpected metrics content:\n%s", metricsText)
	}

	out, err = run(t, f, "reconcile", "--all")
	if err != nil {
		t.Fatalf("second reconcile failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "unchanged") || !strings.Contains(out, "No restarts required.") {
		t.Fatalf("expected converged second pass, got:\n%s", out)
	}

	out, err = run(t, f, "history", "--site", "site1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if strings.Count(out, "site1") != 2 {
		t.Fatalf("expected two journal rows for site1, got:\n%s", out)
	}

	exportPath := filepath.Join(f.dir, "journal")
	out, err = run(t, f, "history", "export", exportPath)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "Exported 2 pass record(s)") {
		t.Fatalf("unexpected export output %q", out)
	}
	recs := readExport(t, exportPath+".zst")
	if len(recs) != 2 || recs[0].Site != "site1" || recs[1].Changed == 0 {
		t.Fatalf("unexpected export content %+v", recs)
	}
}

func readExport(t *testing.T, path string) []passExport {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	zr, err := zstd.NewReader(file)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var out []passExport
	if err := json.NewDecoder(zr).Decode(&out); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	return out
}

func TestReconcile_UnknownSite(t *testing.T) {
	f := newFixture(t, "file")
	_, err := run(t, f, "reconcile", "nope")
	if err == nil || !strings.Contains(err.Error(), `unknown site "nope"`) {
		t.Fatalf("expected unknown site error, got %v", err)
	}
}

func TestReconcile_RequiresSelection(t *testing.T) {
	f := newFixture(t, "file")
	_, err := run(t, f, "reconcile")
	if err == nil || !strings.Contains(err.Error(), "No sites selected") {
		t.Fatalf("expected selection error, got %v", err)
	}
}

func TestReconcile_MissingPackageFailsSite(t *testing.T) {
	f := newFixtureWith(t, "file", false)

	out, err := run(t, f, "reconcile", "site1")
	if err == nil || !strings.Contains(err.Error(), "1 site(s) failed") {
		t.Fatalf("expected failed run, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "missing") {
		t.Fatalf("expected missing dependency in output, got:\n%s", out)
	}
}

func TestSitesImportAndList(t *testing.T) {
	f := newFixture(t, "db")

	out, err := run(t, f, "sites", "import", filepath.Join(f.dir, "sites.yaml"))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, "Imported 1 site(s): 1 new, 0 updated.") {
		t.Fatalf("unexpected import output %q", out)
	}
	out, err = run(t, f, "sites", "import", filepath.Join(f.dir, "sites.yaml"))
	if err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	if !strings.Contains(out, "0 new, 1 updated.") {
		t.Fatalf("unexpected re-import output %q", out)
	}

	out, err = run(t, f, "sites", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "site1") || !strings.Contains(out, f.root) {
		t.Fatalf("expected site1 in list, got:\n%s", out)
	}
}

func TestVersions(t *testing.T) {
	f := newFixture(t, "file")
	out, err := run(t, f, "versions")
	if err != nil {
		t.Fatalf("versions failed: %v", err)
	}
	if !strings.HasPrefix(out, "3.1\n") || !strings.HasSuffix(out, "10.1.X\n") {
		t.Fatalf("unexpected versions output %q", out)
	}
}

func TestStripBanner(t *testing.T) {
	f := newFixture(t, "file")
	banners := tomcat.Banners()
	current := banners[len(banners)-1]
	target := filepath.Join(f.dir, "server.xml")
	writeTestFile(t, target, current.Text+"<Server/>\n")

	out, err := run(t, f, "strip-banner", target)
	if err != nil {
		t.Fatalf("strip-banner failed: %v", err)
	}
	if !strings.Contains(out, "Removed the "+current.Name+" banner") {
		t.Fatalf("unexpected output %q", out)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "<Server/>\n" {
		t.Fatalf("expected banner removed, got %q", data)
	}

	out, err = run(t, f, "strip-banner", target)
	if err != nil {
		t.Fatalf("second strip-banner failed: %v", err)
	}
	if !strings.Contains(out, "No generated banner found") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigWrite(t *testing.T) {
	f := newFixture(t, "file")
	dest := filepath.Join(f.dir, "written.yaml")
	out, err := run(t, f, "config", "write", "--to", dest)
	if err != nil {
		t.Fatalf("config write failed: %v", err)
	}
	if strings.TrimSpace(out) != dest {
		t.Fatalf("expected path %s, got %q", dest, out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "source: file") {
		t.Fatalf("expected effective config in file, got:\n%s", data)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "version: ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
