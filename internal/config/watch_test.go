package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != 9191 {
			t.Errorf("reloaded Server.Port = %d, want 9191", cfg.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never observed the rewrite")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch returned %v, want context.Canceled", err)
	}
}

func TestWatchInvalidRewriteKeepsRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go Watch(ctx, path, nil, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)

	// A broken rewrite is logged and skipped, not delivered.
	if err := os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config delivered: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}

	// A subsequent valid rewrite still comes through.
	if err := os.WriteFile(path, []byte("server:\n  port: 9292\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != 9292 {
			t.Errorf("reloaded Server.Port = %d, want 9292", cfg.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher stopped after the invalid rewrite")
	}
}

func TestWatchNoPathBlocksUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, "", nil, func(*Config) {}) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
