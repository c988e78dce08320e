// Package types defines common type-safe enums used across the codebase.
package types

import (
	"os"
	"strings"
)

// LogLevel is the textual log level accepted in config files and flags.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Valid returns true if the LogLevel is a known valid value. Empty means info.
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	}
	return false
}

// Privilege is the elevation level of the process that will run the
// generated command. Levels are ordered: PrivilegeUser < PrivilegeRoot.
type Privilege string

const (
	// PrivilegeUser is an unprivileged process.
	PrivilegeUser Privilege = "user"
	// PrivilegeRoot is root on Unix or an elevated administrator on Windows.
	PrivilegeRoot Privilege = "root"
)

// ParsePrivilege maps manifest and config spellings onto a Privilege.
// "admin" and "administrator" are accepted as aliases of root.
func ParsePrivilege(s string) (Privilege, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "none", "":
		return PrivilegeUser, true
	case "root", "admin", "administrator":
		return PrivilegeRoot, true
	}
	return "", false
}

// Valid returns true if the Privilege is a known valid value.
func (p Privilege) Valid() bool {
	return p == PrivilegeUser || p == PrivilegeRoot
}

func (p Privilege) rank() int {
	if p == PrivilegeRoot {
		return 1
	}
	return 0
}

// Satisfies reports whether p is at least as elevated as required.
func (p Privilege) Satisfies(required Privilege) bool {
	return p.rank() >= required.rank()
}

// DetectPrivilege inspects the effective uid of the current process.
// On platforms without uids (Geteuid returns -1) the result is PrivilegeUser.
func DetectPrivilege() Privilege {
	if os.Geteuid() == 0 {
		return PrivilegeRoot
	}
	return PrivilegeUser
}
