// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the aoserv-tomcat command line using Cobra. It loads
// configuration, opens the site source and journal, and hands the work to
// internal/core. Commands stay thin and print through internal/report.
package cli
