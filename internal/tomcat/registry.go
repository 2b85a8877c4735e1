// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package tomcat

import (
	"fmt"
	"sync"
)

var (
	confClassic = []string{
		"conf/catalina.policy",
		"conf/catalina.properties",
		"conf/context.xml",
		"conf/logging.properties",
		"conf/tomcat-users.xml",
		"conf/web.xml",
	}
	confSplit = []string{
		"conf/catalina.policy",
		"conf/catalina.properties",
		"conf/tomcat-users.xml",
		"conf/web.xml",
	}
	confVersioned = append(append([]string(nil), confClassic...), "conf/jaspic-providers.xml")
)

const (
	connectorHTTP11 = ` protocol="HTTP/1.1"`
	connectorCoyote = ` className="org.apache.coyote.tomcat4.CoyoteConnector" enableLookups="false"`
)

func releases() []*release {
	return []*release{
		{
			id: "3.1", versionDir: "jakarta-tomcat-3.1", family: family3X,
			jdk: "jdk1.8", servlet: servlet22,
			packages: []string{"jakarta-tomcat_3_1", "jdk1.8"},
			layout:   plan3X,
		},
		{
			id: "3.2.4", versionDir: "jakarta-tomcat-3.2.4", family: family3X,
			jdk: "jdk1.8", servlet: servlet22,
			packages: []string{"jakarta-tomcat_3_2_4", "jdk1.8"},
			layout:   plan3X,
		},
		{
			id: "4.1.X", versionDir: "apache-tomcat-4.1", family: familyClassic,
			jdk: "jdk1.8", servlet: servlet23, connector: connectorCoyote,
			confFiles: confSplit, splitLibs: true,
			packages: []string{"apache-tomcat_4_1", "jdk1.8"},
			layout:   planClassic,
		},
		{
			id: "5.5.X", versionDir: "apache-tomcat-5.5", family: familyClassic,
			jdk: "jdk1.8", servlet: servlet24, connector: connectorHTTP11,
			confFiles: append(confSplit[:len(confSplit):len(confSplit)], "conf/context.xml", "conf/logging.properties"), splitLibs: true,
			packages: []string{"apache-tomcat_5_5", "jdk1.8"},
			layout:   planClassic,
		},
		{
			id: "6.0.X", versionDir: "apache-tomcat-6.0", family: familyClassic,
			jdk: "jdk1.8", servlet: servlet25, connector: connectorHTTP11,
			confFiles: confClassic,
			packages:  []string{"apache-tomcat_6_0", "jdk1.8"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades, classicUpgrades),
			layout: planClassic,
		},
		{
			id: "7.0.X", versionDir: "apache-tomcat-7.0", family: familyClassic,
			jdk: "jdk1.8", servlet: servlet30, connector: connectorHTTP11,
			confFiles: confClassic,
			packages:  []string{"apache-tomcat_7_0", "jdk1.8"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades, classicUpgrades),
			layout: planClassic,
		},
		{
			id: "8.0.X", versionDir: "apache-tomcat-8.0", family: familyClassic,
			jdk: "jdk1.8", servlet: servlet31, connector: connectorHTTP11,
			confFiles: confClassic,
			packages:  []string{"apache-tomcat_8_0", "jdk1.8"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades, classicUpgrades),
			layout: planClassic,
		},
		{
			id: "8.5.X", versionDir: "apache-tomcat-8.5", family: familyVersioned,
			jdk: "jdk11", servlet: servlet31, connector: connectorHTTP11,
			confFiles: confVersioned,
			packages:  []string{"apache-tomcat_8_5", "jdk11"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades),
			layout: planVersioned,
		},
		{
			id: "9.0.X", versionDir: "apache-tomcat-9.0", family: familyVersioned,
			jdk: "jdk17", servlet: servlet40, connector: connectorHTTP11,
			confFiles: confVersioned,
			packages:  []string{"apache-tomcat_9_0", "jdk17"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades),
			layout: planVersioned,
		},
		{
			id: "10.0.X", versionDir: "apache-tomcat-10.0", family: familyVersioned,
			jdk: "jdk17", servlet: servlet50, connector: connectorHTTP11,
			confFiles: confVersioned,
			packages:  []string{"apache-tomcat_10_0", "jdk17"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades, jakartaUpgrades),
			layout: planVersioned,
		},
		{
			id: "10.1.X", versionDir: "apache-tomcat-10.1", family: familyVersioned,
			jdk: "jdk17", servlet: servlet60, connector: connectorHTTP11,
			confFiles: confVersioned,
			packages:  []string{"apache-tomcat_10_1", "jdk17"},
			upgradable: true, upgrades: upgrades(jdbcUpgrades, jakartaUpgrades),
			layout: planVersioned,
		},
	}
}

// Registry maps version identifiers to strategies. It is read-only once
// built and safe for concurrent use.
type Registry struct {
	byID  map[string]Strategy
	order []string
}

// NewRegistry builds every release and its plan.
func NewRegistry() *Registry {
	rels := releases()
	reg := &Registry{byID: make(map[string]Strategy, len(rels))}
	for _, r := range rels {
		r.plan = r.layout(r)
		reg.byID[r.id] = r
		reg.order = append(reg.order, r.id)
	}
	return reg
}

// Default returns the process-wide registry, built on first use.
var Default = sync.OnceValue(NewRegistry)

// Select returns the strategy for version. site only names the requester in
// the error.
func (r *Registry) Select(version, site string) (Strategy, error) {
	s, ok := r.byID[version]
	if !ok {
		return nil, fmt.Errorf("%w %q for site %s", ErrUnsupportedVersion, version, site)
	}
	return s, nil
}

// Versions lists the supported identifiers, oldest first.
func (r *Registry) Versions() []string {
	return append([]string(nil), r.order...)
}
