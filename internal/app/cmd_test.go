package app

import (
	"testing"
)

func TestParseCommand_DefaultsToCollect(t *testing.T) {
	cmd := ParseCommand([]string{})
	if cmd != CommandCollect {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandCollect)
	}
}

func TestParseCommand_KnownCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"collect", CommandCollect},
		{"auth", CommandAuth},
		{"serve", CommandServe},
		{"worker", CommandWorker},
		{"migrate", CommandMigrate},
		{"translate", CommandTranslate},
		{"healthcheck", CommandHealthcheck},
	}

	for _, tt := range tests {
		if got := ParseCommand([]string{tt.arg}); got != tt.want {
			t.Errorf("ParseCommand([%s]) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestParseCommand_UnknownDefaultsToCollect(t *testing.T) {
	cmd := ParseCommand([]string{"unknown"})
	if cmd != CommandCollect {
		t.Errorf("ParseCommand([unknown]) = %q, want %q", cmd, CommandCollect)
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd := ParseCommand([]string{"translate", "export", "out.csv"})
	if cmd != CommandTranslate {
		t.Errorf("ParseCommand([translate export out.csv]) = %q, want %q", cmd, CommandTranslate)
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandCollect, "collect"},
		{CommandAuth, "auth"},
		{CommandServe, "serve"},
		{CommandWorker, "worker"},
		{CommandMigrate, "migrate"},
		{CommandTranslate, "translate"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
