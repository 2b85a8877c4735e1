// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package tomcat

import (
	"os"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
)

// Layout helpers shared by the release families. Each family composes them
// into a complete plan; none of them perform I/O.

const (
	modePrivateDir = 0o770
	modePublicDir  = 0o775
	modeConf       = 0o660
	modeScript     = 0o700
	modeProfile    = 0o750
	modeWebXML     = 0o664
)

func linkAll(paths ...string) install.Plan {
	p := make(install.Plan, 0, len(paths))
	for _, path := range paths {
		p = append(p, install.LinkVersion(path))
	}
	return p
}

func copyAll(mode os.FileMode, paths ...string) install.Plan {
	p := make(install.Plan, 0, len(paths))
	for _, path := range paths {
		p = append(p, install.Copy(path, mode))
	}
	return p
}

// runtimeDirs are the writable directories every release needs.
func runtimeDirs(extra ...string) install.Plan {
	p := install.Plan{
		install.Mkdir("logs", modePrivateDir),
		install.Mkdir("temp", modePrivateDir),
		install.Mkdir("work", modePrivateDir),
		install.Mkdir("daemon", modePrivateDir),
	}
	for _, dir := range extra {
		p = append(p, install.Mkdir(dir, modePrivateDir))
	}
	return p
}

// rootWebapp declares the default application with its editable descriptor.
func rootWebapp(s servlet) install.Plan {
	return install.Plan{
		install.Mkdir("webapps", modePublicDir),
		install.Mkdir("webapps/ROOT", modePublicDir),
		install.Mkdir("webapps/ROOT/WEB-INF", modePublicDir),
		install.Mkdir("webapps/ROOT/WEB-INF/classes", modePublicDir),
		install.Mkdir("webapps/ROOT/WEB-INF/lib", modePublicDir),
		install.GenerateEditable("webapps/ROOT/WEB-INF/web.xml", modeWebXML, rootWebXML(s)),
	}
}

func join(plans ...install.Plan) install.Plan {
	var out install.Plan
	for _, p := range plans {
		out = append(out, p...)
	}
	return out
}

// plan3X lays out the Jakarta Tomcat 3.x tree: tomcat.sh driven startup,
// a single lib directory and a ContextManager server.xml.
func plan3X(r *release) install.Plan {
	return join(
		install.Plan{
			install.Mkdir("bin", modePrivateDir),
			install.Generate("bin/profile", modeProfile, profileGen("TOMCAT_HOME", r.jdk)),
			install.Generate("bin/tomcat", modeScript, startGen("tomcat.sh")),
		},
		linkAll("bin/tomcat.sh", "bin/tomcatEnv.sh", "bin/jasper.sh"),
		install.Plan{
			install.Mkdir("classes", modePublicDir),
			install.Mkdir("conf", modePublicDir),
			install.GenerateEditable("conf/server.xml", modeConf, serverXML3),
		},
		copyAll(modeConf, "conf/web.xml", "conf/tomcat-users.xml", "conf/modules.xml"),
		install.Plan{
			install.Mkdir("lib", modePrivateDir),
			install.SymlinkAll("lib"),
		},
		runtimeDirs(),
		rootWebapp(r.servlet),
	)
}

// planClassic lays out the 4.1 to 8.0 trees. Startup scripts are private
// copies the instance may patch; shared jars stay linked. Releases before
// 6.0 split their libraries across common, server and shared.
func planClassic(r *release) install.Plan {
	scripts := []string{"bin/catalina.sh", "bin/digest.sh", "bin/setclasspath.sh", "bin/shutdown.sh", "bin/startup.sh", "bin/tool-wrapper.sh", "bin/version.sh"}
	jars := []string{"bin/bootstrap.jar", "bin/commons-daemon.jar", "bin/tomcat-juli.jar"}
	if r.splitLibs {
		scripts = append(scripts, "bin/jasper.sh")
		jars = []string{"bin/bootstrap.jar", "bin/commons-daemon.jar"}
		if r.id == "5.5.X" {
			jars = append(jars, "bin/commons-logging-api.jar", "bin/tomcat-juli.jar")
		}
	}
	bin := join(
		install.Plan{
			install.Mkdir("bin", modePrivateDir),
			install.Generate("bin/profile", modeProfile, profileGen("CATALINA_HOME", r.jdk)),
			install.Generate("bin/tomcat", modeScript, startGen("catalina.sh")),
		},
		copyAll(modeScript, scripts...),
		linkAll(jars...),
	)
	if !r.splitLibs {
		bin = append(bin, install.Delete("bin/jasper.sh"))
	}

	var libs install.Plan
	if r.splitLibs {
		libs = install.Plan{
			install.Mkdir("common", modePrivateDir),
			install.Mkdir("common/classes", modePrivateDir),
			install.Mkdir("common/lib", modePrivateDir),
			install.SymlinkAll("common/lib"),
			install.Mkdir("server", modePrivateDir),
			install.Mkdir("server/lib", modePrivateDir),
			install.SymlinkAll("server/lib"),
			install.Mkdir("shared", modePrivateDir),
			install.Mkdir("shared/classes", modePrivateDir),
			install.Mkdir("shared/lib", modePrivateDir),
		}
	} else {
		libs = install.Plan{
			install.Mkdir("lib", modePrivateDir),
			install.SymlinkAll("lib"),
		}
	}

	return join(
		bin,
		install.Plan{
			install.Mkdir("conf", modePublicDir),
			install.Mkdir("conf/Catalina", modePublicDir),
			install.Mkdir("conf/Catalina/localhost", modePublicDir),
			install.GenerateEditable("conf/server.xml", modeConf, serverXMLCatalina(r.connector)),
		},
		copyAll(modeConf, r.confFiles...),
		libs,
		runtimeDirs(),
		rootWebapp(r.servlet),
	)
}

// planVersioned lays out the 8.5 and later trees: bin and lib are links into
// /opt/apache-tomcat-<major.minor> so patch upgrades of the shared tree take
// effect on restart without touching the site.
func planVersioned(r *release) install.Plan {
	return join(
		install.Plan{
			install.Mkdir("bin", modePrivateDir),
			install.Generate("bin/profile", modeProfile, profileGen("CATALINA_HOME", r.jdk)),
			install.Generate("bin/tomcat", modeScript, startGen("catalina.sh")),
		},
		linkAll(
			"bin/bootstrap.jar",
			"bin/catalina.sh",
			"bin/commons-daemon.jar",
			"bin/configtest.sh",
			"bin/digest.sh",
			"bin/setclasspath.sh",
			"bin/shutdown.sh",
			"bin/startup.sh",
			"bin/tomcat-juli.jar",
			"bin/tool-wrapper.sh",
			"bin/version.sh",
		),
		install.Plan{
			install.Delete("bin/jasper.sh"),
			install.Mkdir("conf", modePublicDir),
			install.Mkdir("conf/Catalina", modePublicDir),
			install.Mkdir("conf/Catalina/localhost", modePublicDir),
			install.GenerateEditable("conf/server.xml", modeConf, serverXMLCatalina(r.connector)),
		},
		copyAll(modeConf, r.confFiles...),
		install.Plan{
			install.Mkdir("lib", modePrivateDir),
			install.SymlinkAll("lib"),
		},
		runtimeDirs(),
		rootWebapp(r.servlet),
	)
}
