package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupAndRestoreCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storeArgs := []string{"--dot-path", dir, "--db-name", "cli.db", "--chat=-100"}

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run(append([]string{"ngguard", "backup"}, storeArgs...)); err != nil {
		t.Fatalf("backup: %v", err)
	}
	backup := out.String()
	if !strings.Contains(backup, `"stop_words"`) || !strings.Contains(backup, `"message_limit": 6`) {
		t.Fatalf("unexpected backup: %s", backup)
	}

	edited := strings.Replace(backup, `"message_limit": 6`, `"message_limit": 3`, 1)
	file := filepath.Join(dir, "backup.json")
	if err := os.WriteFile(file, []byte(edited), 0o600); err != nil {
		t.Fatalf("write backup: %v", err)
	}

	out.Reset()
	app = newApp()
	app.Writer = &out
	restoreArgs := append(append([]string{"ngguard", "restore"}, storeArgs...), "--file", file)
	if err := app.Run(restoreArgs); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out.String(), "settings restored for chat -100") {
		t.Fatalf("unexpected restore output: %q", out.String())
	}

	out.Reset()
	app = newApp()
	app.Writer = &out
	if err := app.Run(append([]string{"ngguard", "backup"}, storeArgs...)); err != nil {
		t.Fatalf("second backup: %v", err)
	}
	if !strings.Contains(out.String(), `"message_limit": 3`) {
		t.Fatalf("restored settings not saved: %s", out.String())
	}
}

func TestRestoreRejectsInvalidBackup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(file, []byte(`{"flood": {"message_limit": 0}}`), 0o600); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"ngguard", "restore", "--dot-path", dir, "--db-name", "cli.db", "--chat=-100", "--file", file})
	if err == nil {
		t.Fatalf("invalid backup must be rejected")
	}
}
