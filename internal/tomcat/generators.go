// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package tomcat

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/drift"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
)

const (
	defaultHTTPPort     = 8080
	defaultShutdownPort = 8005
)

// Banners that mark generated XML as managed, oldest first.
var (
	xmlBannerV1 = drift.Banner{
		Name: "xml-v1",
		Text: "<!-- WARNING: This file is automatically generated. Manual edits will be lost. -->\n",
	}
	xmlBannerV2 = drift.Banner{
		Name: "xml-v2",
		Text: "<!--\n" +
			"  WARNING: Do not edit this file, it is automatically generated.\n" +
			"  To take control of it, switch the site to manual mode.\n" +
			"-->\n",
	}
	xmlBannerCurrent = drift.Banner{
		Name: "xml-current",
		Text: "<!--\n" +
			"  This file is maintained by aoserv-daemon and is overwritten on every pass.\n" +
			"  Switch the site to manual mode before editing it; this notice is then\n" +
			"  removed and the file is left to the site administrator.\n" +
			"-->\n",
	}
)

// shellHeader opens every generated script. Scripts are never handed to the
// administrator, so there is no legacy form to strip.
const shellHeader = "#!/bin/sh\n" +
	"#\n" +
	"# Generated by aoserv-daemon. Local changes are overwritten.\n" +
	"#\n"

// Banners returns the banner attempt order for manual sites: every legacy
// form, oldest first, then the current one.
func Banners() []drift.Banner {
	return []drift.Banner{xmlBannerV1, xmlBannerV2, xmlBannerCurrent}
}

func httpPort(ctx install.GenContext) int {
	if ctx.Site.HTTPPort > 0 {
		return ctx.Site.HTTPPort
	}
	return defaultHTTPPort
}

func shutdownPort(ctx install.GenContext) int {
	if ctx.Site.ShutdownPort > 0 {
		return ctx.Site.ShutdownPort
	}
	return defaultShutdownPort
}

// shellQuote quotes s for POSIX sh. Nothing inside single quotes is
// expanded; an embedded quote is closed, escaped and reopened.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// xmlEscape escapes s for element text and attribute values.
func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s)) // strings.Builder never fails
	return b.String()
}

// xmlComment makes s safe to place inside <!-- -->.
func xmlComment(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	return strings.TrimSuffix(s, "-")
}

// profileGen returns the environment script sourced by bin/tomcat.
func profileGen(homeVar, jdk string) install.Generator {
	return func(ctx install.GenContext) []byte {
		var b strings.Builder
		b.WriteString(shellHeader)
		b.WriteString("\n")
		fmt.Fprintf(&b, "JAVA_HOME=%s\n", shellQuote("/opt/"+jdk))
		fmt.Fprintf(&b, "%s=%s\n", homeVar, shellQuote(ctx.Root))
		if homeVar == "CATALINA_HOME" {
			fmt.Fprintf(&b, "CATALINA_BASE=%s\n", shellQuote(ctx.Root))
			fmt.Fprintf(&b, "CATALINA_TMPDIR=%s\n", shellQuote(ctx.Root+"/temp"))
		}
		fmt.Fprintf(&b, "SITE=%s\n", shellQuote(ctx.Site.Name))
		fmt.Fprintf(&b, "TOMCAT_VERSION_DIR=%s\n", shellQuote(ctx.VersionDir))
		b.WriteString("PATH=\"$JAVA_HOME/bin:$PATH\"\n")
		fmt.Fprintf(&b, "export JAVA_HOME %s", homeVar)
		if homeVar == "CATALINA_HOME" {
			b.WriteString(" CATALINA_BASE CATALINA_TMPDIR")
		}
		b.WriteString(" SITE TOMCAT_VERSION_DIR PATH\n")
		return []byte(b.String())
	}
}

// startGen returns bin/tomcat, the entry point used by the process manager.
func startGen(script string) install.Generator {
	return func(ctx install.GenContext) []byte {
		var b strings.Builder
		b.WriteString(shellHeader)
		b.WriteString("\n")
		fmt.Fprintf(&b, ". %s\n", shellQuote(ctx.Root+"/bin/profile"))
		fmt.Fprintf(&b, "cd %s || exit 1\n", shellQuote(ctx.Root))
		fmt.Fprintf(&b, "exec %s \"$@\"\n", shellQuote(ctx.Root+"/bin/"+script))
		return []byte(b.String())
	}
}

// serverXML3 renders conf/server.xml for the 3.x ContextManager grammar.
func serverXML3(ctx install.GenContext) []byte {
	var b strings.Builder
	b.WriteString(xmlBannerCurrent.Text)
	b.WriteString("<Server>\n")
	b.WriteString("  <xmlmapper:debug level=\"0\" />\n")
	b.WriteString("  <Logger name=\"tc_log\" path=\"logs/tomcat.log\" verbosityLevel=\"INFORMATION\" />\n")
	b.WriteString("  <ContextManager debug=\"0\" workDir=\"work\" showDebugInfo=\"false\">\n")
	b.WriteString("    <Connector className=\"org.apache.tomcat.service.PoolTcpConnector\">\n")
	b.WriteString("      <Parameter name=\"handler\" value=\"org.apache.tomcat.service.http.HttpConnectionHandler\" />\n")
	fmt.Fprintf(&b, "      <Parameter name=\"port\" value=\"%d\" />\n", httpPort(ctx))
	b.WriteString("      <Parameter name=\"inet\" value=\"127.0.0.1\" />\n")
	b.WriteString("    </Connector>\n")
	b.WriteString("    <Context path=\"\" docBase=\"webapps/ROOT\" debug=\"0\" reloadable=\"false\" />\n")
	b.WriteString("  </ContextManager>\n")
	b.WriteString("</Server>\n")
	return []byte(b.String())
}

// serverXMLCatalina renders conf/server.xml for the Catalina grammar used
// from 4.1 onwards. connector is the connector element's extra attributes.
func serverXMLCatalina(connector string) install.Generator {
	return func(ctx install.GenContext) []byte {
		var b strings.Builder
		b.WriteString(xmlBannerCurrent.Text)
		fmt.Fprintf(&b, "<Server port=\"%d\" shutdown=\"SHUTDOWN\">\n", shutdownPort(ctx))
		b.WriteString("  <Service name=\"Catalina\">\n")
		fmt.Fprintf(&b, "    <Connector port=\"%d\" address=\"127.0.0.1\"%s connectionTimeout=\"20000\" />\n", httpPort(ctx), connector)
		b.WriteString("    <Engine name=\"Catalina\" defaultHost=\"localhost\">\n")
		b.WriteString("      <Host name=\"localhost\" appBase=\"webapps\" unpackWARs=\"true\" autoDeploy=\"true\">\n")
		fmt.Fprintf(&b, "        <!-- site %s -->\n", xmlComment(ctx.Site.Name))
		b.WriteString("      </Host>\n")
		b.WriteString("    </Engine>\n")
		b.WriteString("  </Service>\n")
		b.WriteString("</Server>\n")
		return []byte(b.String())
	}
}

// servlet describes the deployment descriptor grammar of a release.
type servlet struct {
	version string
	ns      string // Empty for DTD based descriptors.
	dtd     string
}

var (
	servlet22 = servlet{version: "2.2", dtd: "http://java.sun.com/j2ee/dtds/web-app_2_2.dtd"}
	servlet23 = servlet{version: "2.3", dtd: "http://java.sun.com/dtd/web-app_2_3.dtd"}
	servlet24 = servlet{version: "2.4", ns: "http://java.sun.com/xml/ns/j2ee"}
	servlet25 = servlet{version: "2.5", ns: "http://java.sun.com/xml/ns/javaee"}
	servlet30 = servlet{version: "3.0", ns: "http://java.sun.com/xml/ns/javaee"}
	servlet31 = servlet{version: "3.1", ns: "http://xmlns.jcp.org/xml/ns/javaee"}
	servlet40 = servlet{version: "4.0", ns: "http://xmlns.jcp.org/xml/ns/javaee"}
	servlet50 = servlet{version: "5.0", ns: "https://jakarta.ee/xml/ns/jakartaee"}
	servlet60 = servlet{version: "6.0", ns: "https://jakarta.ee/xml/ns/jakartaee"}
)

// rootWebXML renders webapps/ROOT/WEB-INF/web.xml.
func rootWebXML(s servlet) install.Generator {
	return func(ctx install.GenContext) []byte {
		var b strings.Builder
		b.WriteString(xmlBannerCurrent.Text)
		if s.ns == "" {
			fmt.Fprintf(&b, "<!DOCTYPE web-app PUBLIC \"-//Sun Microsystems, Inc.//DTD Web Application %s//EN\" %q>\n", s.version, s.dtd)
			b.WriteString("<web-app>\n")
		} else {
			fmt.Fprintf(&b, "<web-app xmlns=%q version=%q>\n", s.ns, s.version)
		}
		fmt.Fprintf(&b, "  <display-name>%s</display-name>\n", xmlEscape(ctx.Site.Name))
		b.WriteString("  <welcome-file-list>\n")
		b.WriteString("    <welcome-file>index.html</welcome-file>\n")
		b.WriteString("    <welcome-file>index.jsp</welcome-file>\n")
		b.WriteString("  </welcome-file-list>\n")
		b.WriteString("</web-app>\n")
		return []byte(b.String())
	}
}
