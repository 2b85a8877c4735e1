// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package install converges one installation root towards a declared set of
// filesystem actions.
//
// Every mutation goes through Writer: prior content is always kept at a
// backup path chosen by NextBackupPath, and file content is committed with a
// rename so a crash never leaves a truncated target. Actions are immutable
// descriptors grouped into a Plan; applying the same Plan twice performs no
// mutation on the second pass.
package install
