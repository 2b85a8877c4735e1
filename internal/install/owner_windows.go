// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import "os"

// FileOwner is not available on Windows; ownership is never enforced there.
func FileOwner(info os.FileInfo) (uid, gid int, ok bool) {
	return -1, -1, false
}
