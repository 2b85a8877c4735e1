package tomcat

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/drift"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// newEnv prepares an empty root and a version tree holding every file the
// strategy links or copies.
func newEnv(t *testing.T, s Strategy) *install.Env {
	t.Helper()
	tmp := t.TempDir()
	fsys := install.NewOsFs()
	env := &install.Env{
		Site:        model.Site{Name: "site1", Version: s.Version()},
		Root:        filepath.Join(tmp, "srv", "site1"),
		VersionBase: filepath.Join(tmp, "opt"),
		VersionDir:  s.VersionDir(),
		UID:         os.Getuid(),
		GID:         os.Getgid(),
		FS:          fsys,
		Writer:      install.NewWriter(fsys, "", ""),
		Resolver:    drift.NewResolver(fsys, Banners()...),
	}
	env.Site.Root = env.Root
	if err := os.MkdirAll(env.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, a := range s.Plan() {
		switch a.Kind() {
		case install.KindSymlink, install.KindCopy:
			writeFile(t, env.VersionPath(a.Path()), "release file "+a.Path())
		case install.KindSymlinkAll:
			writeFile(t, env.VersionPath(a.Path()+"/catalina.jar"), "jar")
			writeFile(t, env.VersionPath(a.Path()+"/servlet-api.jar"), "jar")
		}
	}
	return env
}

func TestRegistry_SelectIsTotal(t *testing.T) {
	reg := NewRegistry()
	want := []string{"3.1", "3.2.4", "4.1.X", "5.5.X", "6.0.X", "7.0.X", "8.0.X", "8.5.X", "9.0.X", "10.0.X", "10.1.X"}
	got := reg.Versions()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected versions %v, got %v", want, got)
	}
	for _, v := range want {
		t.Run(v, func(t *testing.T) {
			s, err := reg.Select(v, "site1")
			if err != nil {
				t.Fatalf("Select(%s) failed: %v", v, err)
			}
			if s.Version() != v {
				t.Fatalf("expected version %s, got %s", v, s.Version())
			}
			if s.VersionDir() == "" || len(s.RequiredPackages()) == 0 {
				t.Fatalf("incomplete strategy for %s", v)
			}
			if err := s.Plan().Validate(); err != nil {
				t.Fatalf("plan for %s is invalid: %v", v, err)
			}
		})
	}
}

func TestRegistry_SelectUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, v := range []string{"", "11.0.X", "9.0", "9.0.85", "3.2.X", "8.5.x"} {
		_, err := reg.Select(v, "example.com")
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("Select(%q): expected ErrUnsupportedVersion, got %v", v, err)
		}
		if !strings.Contains(err.Error(), "example.com") {
			t.Fatalf("error should name the site: %v", err)
		}
	}
}

func TestDefaultRegistryIsShared(t *testing.T) {
	if Default() != Default() {
		t.Fatal("expected one registry per process")
	}
}

func TestUpgradeRefused(t *testing.T) {
	reg := NewRegistry()
	for _, v := range []string{"3.1", "3.2.4", "4.1.X", "5.5.X"} {
		t.Run(v, func(t *testing.T) {
			s, _ := reg.Select(v, "site1")
			if s.SupportsUpgrade() {
				t.Fatalf("%s must refuse upgrades", v)
			}
			env := newEnv(t, s)
			if _, err := s.BuildInstallation(context.Background(), env, true); !errors.Is(err, ErrUnsupportedOperation) {
				t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
			}
			if _, err := s.UpgradeInPlace(context.Background(), env); !errors.Is(err, ErrUnsupportedOperation) {
				t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
			}
			entries, _ := os.ReadDir(env.Root)
			if len(entries) != 0 {
				t.Fatal("a refused upgrade must not touch the root")
			}
		})
	}
}

func TestBuildInstallation_EveryRelease(t *testing.T) {
	reg := NewRegistry()
	for _, v := range reg.Versions() {
		t.Run(v, func(t *testing.T) {
			s, _ := reg.Select(v, "site1")
			env := newEnv(t, s)
			first, err := s.BuildInstallation(context.Background(), env, false)
			if err != nil {
				t.Fatalf("first build failed: %v", err)
			}
			if !first.RestartRequired() {
				t.Fatal("expected restart after provisioning")
			}
			server := readFile(t, filepath.Join(env.Root, "conf", "server.xml"))
			if !strings.HasPrefix(server, xmlBannerCurrent.Text) {
				t.Fatal("server.xml must start with the current banner")
			}
			second, err := s.BuildInstallation(context.Background(), env, false)
			if err != nil {
				t.Fatalf("second build failed: %v", err)
			}
			if len(second.Changes) != 0 {
				t.Fatalf("expected idempotent build, got changes %v", second.Paths())
			}
		})
	}
}

func TestVersionedLayoutLinksIntoSharedTree(t *testing.T) {
	s, _ := NewRegistry().Select("9.0.X", "site1")
	env := newEnv(t, s)
	if _, err := s.BuildInstallation(context.Background(), env, false); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	link, err := os.Readlink(filepath.Join(env.Root, "bin", "catalina.sh"))
	if err != nil {
		t.Fatalf("expected bin/catalina.sh to be a link: %v", err)
	}
	if want := "../../../opt/apache-tomcat-9.0/bin/catalina.sh"; link != want {
		t.Fatalf("expected %s, got %s", want, link)
	}
	profile := readFile(t, filepath.Join(env.Root, "bin", "profile"))
	for _, want := range []string{`JAVA_HOME='/opt/jdk17'`, `CATALINA_BASE='` + env.Root + `'`, `SITE='site1'`} {
		if !strings.Contains(profile, want) {
			t.Fatalf("profile is missing %s:\n%s", want, profile)
		}
	}
	if _, err := os.Readlink(filepath.Join(env.Root, "lib", "servlet-api.jar")); err != nil {
		t.Fatalf("expected lib members to be linked: %v", err)
	}
}

func TestRebuildGenerated(t *testing.T) {
	s, _ := NewRegistry().Select("10.1.X", "site1")
	env := newEnv(t, s)
	if _, err := s.BuildInstallation(context.Background(), env, false); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	res, err := s.RebuildGenerated(context.Background(), env)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if res.RestartRequired() {
		t.Fatalf("expected no restart without changes, got %v", res.Paths())
	}

	env.Site.HTTPPort = 8181
	res, err = s.RebuildGenerated(context.Background(), env)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if !res.RestartRequired() || strings.Join(res.Paths(), ",") != "conf/server.xml" {
		t.Fatalf("expected only conf/server.xml to change, got %v", res.Paths())
	}
	if !strings.Contains(readFile(t, filepath.Join(env.Root, "conf", "server.xml")), `port="8181"`) {
		t.Fatal("expected new port in server.xml")
	}
}

func TestRebuildGenerated_ManualSite(t *testing.T) {
	s, _ := NewRegistry().Select("8.5.X", "site1")
	env := newEnv(t, s)
	if _, err := s.BuildInstallation(context.Background(), env, false); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	serverXML := filepath.Join(env.Root, "conf", "server.xml")
	admin := "<Server port=\"9005\"><!-- tuned by hand --></Server>\n"
	writeFile(t, serverXML, xmlBannerV1.Text+admin)

	env.Manual = true
	env.Site.Manual = true
	env.Site.HTTPPort = 9090
	res, err := s.RebuildGenerated(context.Background(), env)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	for _, p := range res.Paths() {
		if p == "conf/server.xml" {
			t.Fatal("manual site's server.xml must not be rewritten")
		}
	}
	if got := readFile(t, serverXML); got != admin {
		t.Fatalf("expected banner stripped and admin text kept, got %q", got)
	}
}

func TestUpgradeInPlace(t *testing.T) {
	s, _ := NewRegistry().Select("9.0.X", "site1")
	env := newEnv(t, s)
	if _, err := s.BuildInstallation(context.Background(), env, true); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	lib := filepath.Join(env.Root, "lib")
	pg := filepath.Join(lib, "postgresql.jar")
	if err := os.Symlink("../../../opt/postgresql-jdbc/postgresql-42.2.jar", pg); err != nil {
		t.Fatal(err)
	}
	mysqlOld := filepath.Join(lib, "mysql-connector-java.jar")
	if err := os.Symlink(filepath.Join(env.VersionBase, "mysql-connector-java/mysql-connector-java-5.1.jar"), mysqlOld); err != nil {
		t.Fatal(err)
	}
	adminLink := filepath.Join(lib, "mysql-connector-java-8.jar")
	if err := os.Symlink("/usr/share/java/mysql.jar", adminLink); err != nil {
		t.Fatal(err)
	}

	res, err := s.UpgradeInPlace(context.Background(), env)
	if err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if !res.RestartRequired() || len(res.Changes) != 2 {
		t.Fatalf("expected two swaps, got %v", res.Paths())
	}
	if got, _ := os.Readlink(pg); got != "../../../opt/postgresql-jdbc/postgresql-42.7.jar" {
		t.Fatalf("unexpected postgresql link %s", got)
	}
	if _, err := os.Lstat(mysqlOld); !os.IsNotExist(err) {
		t.Fatal("expected old connector link to be retired")
	}
	if got, _ := os.Readlink(filepath.Join(lib, "mysql-connector-j.jar")); got != "../../../opt/mysql-connector-j/mysql-connector-j-8.4.jar" {
		t.Fatalf("unexpected connector link %s", got)
	}
	if got, _ := os.Readlink(adminLink); got != "/usr/share/java/mysql.jar" {
		t.Fatal("administrator link must not be touched")
	}

	res, err = s.UpgradeInPlace(context.Background(), env)
	if err != nil {
		t.Fatalf("second upgrade failed: %v", err)
	}
	if len(res.Changes) != 0 {
		t.Fatalf("expected idempotent upgrade, got %v", res.Paths())
	}
}

// refuseLinkFs fails every symlink whose target ends in suffix.
type refuseLinkFs struct {
	install.FS
	suffix string
}

func (f refuseLinkFs) SymlinkIfPossible(oldname, newname string) error {
	if strings.HasSuffix(oldname, f.suffix) {
		return &os.LinkError{Op: "symlink", Old: oldname, New: newname, Err: os.ErrPermission}
	}
	return f.FS.SymlinkIfPossible(oldname, newname)
}

func TestUpgradeInPlace_FailedSwapReportsRetiredLink(t *testing.T) {
	s, _ := NewRegistry().Select("9.0.X", "site1")
	env := newEnv(t, s)
	if _, err := s.BuildInstallation(context.Background(), env, false); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	mysqlOld := filepath.Join(env.Root, "lib", "mysql-connector-java.jar")
	if err := os.Symlink(filepath.Join(env.VersionBase, "mysql-connector-java/mysql-connector-java-5.1.jar"), mysqlOld); err != nil {
		t.Fatal(err)
	}
	fsys := refuseLinkFs{FS: env.FS, suffix: "mysql-connector-j-8.4.jar"}
	env.FS = fsys
	env.Writer = install.NewWriter(fsys, "", "")

	res, err := s.UpgradeInPlace(context.Background(), env)
	var ae *install.ActionError
	if !errors.As(err, &ae) || ae.Path != "lib/mysql-connector-java.jar" {
		t.Fatalf("expected failure at lib/mysql-connector-java.jar, got %v", err)
	}
	if _, err := os.Lstat(mysqlOld); !os.IsNotExist(err) {
		t.Fatal("expected old connector link to be retired before the failure")
	}
	if !res.RestartRequired() || len(res.Paths()) != 1 || res.Paths()[0] != "lib/mysql-connector-java.jar" {
		t.Fatalf("expected the retired link to be reported, got %v", res.Paths())
	}
}

func TestBannersAreNotPrefixesOfEachOther(t *testing.T) {
	bs := Banners()
	if bs[len(bs)-1] != xmlBannerCurrent {
		t.Fatal("current banner must be tried last")
	}
	for i, a := range bs {
		for j, b := range bs {
			if i != j && strings.HasPrefix(b.Text, a.Text) {
				t.Fatalf("%s is a prefix of %s", a.Name, b.Name)
			}
		}
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/srv/site1", `'/srv/site1'`},
		{"/srv/$HOME/`id`", "'/srv/$HOME/`id`'"},
		{"it's", `'it'\''s'`},
		{"", `''`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestGeneratedScriptsQuoteRoot(t *testing.T) {
	ctx := install.GenContext{
		Root:       "/srv/a$b`c`",
		VersionDir: "apache-tomcat-9.0",
		Site:       model.Site{Name: "site1"},
	}
	profile := string(profileGen("CATALINA_HOME", "jdk17")(ctx))
	if want := "CATALINA_HOME='/srv/a$b`c`'\n"; !strings.Contains(profile, want) {
		t.Fatalf("profile is missing %q:\n%s", want, profile)
	}
	start := string(startGen("catalina.sh")(ctx))
	if want := "exec '/srv/a$b`c`/bin/catalina.sh' \"$@\"\n"; !strings.Contains(start, want) {
		t.Fatalf("start script is missing %q:\n%s", want, start)
	}
}

func TestGeneratedXMLIsWellFormed(t *testing.T) {
	ctx := install.GenContext{
		Root: "/srv/site1",
		Site: model.Site{Name: "a&b<c>--d-"},
	}
	docs := map[string]install.Generator{
		"server.xml 3":        serverXML3,
		"server.xml catalina": serverXMLCatalina(""),
		"web.xml dtd":         rootWebXML(servlet23),
		"web.xml ns":          rootWebXML(servlet60),
	}
	for name, gen := range docs {
		t.Run(name, func(t *testing.T) {
			out := gen(ctx)
			dec := xml.NewDecoder(bytes.NewReader(out))
			for {
				_, err := dec.Token()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("malformed output: %v\n%s", err, out)
				}
			}
		})
	}
	web := string(rootWebXML(servlet60)(ctx))
	if want := "<display-name>a&amp;b&lt;c&gt;--d-</display-name>"; !strings.Contains(web, want) {
		t.Fatalf("expected %s in:\n%s", want, web)
	}
}
