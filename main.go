// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for aoserv-tomcat.
//
// Usage:
//
//	go run . reconcile --all
//	./aoserv-tomcat reconcile site1 site2
//
// See --help for options.
package main

import (
	"os"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
	"github.com/ao-apps/aoserv-daemon-sub001/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("%v", err)
		os.Exit(1)
	}
}
