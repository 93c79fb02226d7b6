package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/beacon/internal/config"
	"github.com/xraph/beacon/store/memory"
	"github.com/xraph/beacon/trigger"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { cfgFile = "" })
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTriggersCommand(t *testing.T) {
	out := execute(t, "triggers")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(trigger.All()) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(trigger.All()), len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "link.created") {
		t.Errorf("unexpected first line %q", lines[0])
	}
}

func TestSecretCommand(t *testing.T) {
	out := strings.TrimSpace(execute(t, "secret"))
	if !strings.HasPrefix(out, "whsec_") {
		t.Fatalf("unexpected secret %q", out)
	}
}

func TestMigrateCommand(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "beacon.db")
	path := writeConfig(t, `
store:
  driver: sqlite
  dsn: "`+dsn+`"
callback:
  url: https://beacon.example.com/callback
  signing_key: sig_current
`)
	out := execute(t, "migrate", "--config", path)
	if !strings.Contains(out, "Migrated sqlite store") {
		t.Fatalf("unexpected output %q", out)
	}
	// Idempotent.
	execute(t, "migrate", "--config", path)
}

func TestBuildSharesMemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Callback.URL = "https://beacon.example.com/callback"
	cfg.Callback.SigningKey = "sig_current"

	rt, err := build(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if _, ok := rt.beacon.Store().(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", rt.beacon.Store())
	}
	if rt.beacon.DLQ() == nil {
		t.Fatal("expected local queue with DLQ")
	}
	if rt.gatherer == nil {
		t.Fatal("expected metrics registry")
	}
	if rt.beacon.CallbackVerifier() == nil {
		t.Fatal("expected callback verifier")
	}
}

func TestBuildQStash(t *testing.T) {
	cfg := config.Default()
	cfg.Callback.URL = "https://beacon.example.com/callback"
	cfg.Callback.SigningKey = "sig_current"
	cfg.Queue.Mode = "qstash"
	cfg.Queue.QStash.Token = "token"
	cfg.Metrics.Enabled = false

	rt, err := build(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if rt.beacon.DLQ() != nil {
		t.Fatal("expected no local DLQ with an external queue")
	}
	if rt.gatherer != nil {
		t.Fatal("expected metrics disabled")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "webhook_id", "wh_1")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "webhook_id=wh_1") {
		t.Fatalf("unexpected log output %q", out)
	}
}
