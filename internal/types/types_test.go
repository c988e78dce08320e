package types

import "testing"

func TestLogLevelValid(t *testing.T) {
	valid := []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, ""}
	for _, l := range valid {
		if !l.Valid() {
			t.Errorf("LogLevel(%q).Valid() = false, want true", l)
		}
	}
	invalid := []LogLevel{"invalid", "verbose", "fatal", "warning"}
	for _, l := range invalid {
		if l.Valid() {
			t.Errorf("LogLevel(%q).Valid() = true, want false", l)
		}
	}
}

func TestParsePrivilege(t *testing.T) {
	tests := []struct {
		input  string
		want   Privilege
		wantOK bool
	}{
		{"root", PrivilegeRoot, true},
		{"Administrator", PrivilegeRoot, true},
		{"admin", PrivilegeRoot, true},
		{"user", PrivilegeUser, true},
		{"", PrivilegeUser, true},
		{"superuser", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePrivilege(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParsePrivilege(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPrivilegeSatisfies(t *testing.T) {
	if !PrivilegeRoot.Satisfies(PrivilegeRoot) || !PrivilegeRoot.Satisfies(PrivilegeUser) {
		t.Error("root must satisfy every level")
	}
	if PrivilegeUser.Satisfies(PrivilegeRoot) {
		t.Error("user must not satisfy root")
	}
	if !PrivilegeUser.Satisfies(PrivilegeUser) {
		t.Error("user must satisfy user")
	}
}
