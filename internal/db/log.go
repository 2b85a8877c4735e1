// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/ao-apps/aoserv-daemon-sub001/internal/logging"

func dbLogf(format string, v ...any) {
	logging.Debugf(format, v...)
}
