// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"os"
	"testing"
)

func TestManager_ReloadNotifiesSubscribers(t *testing.T) {
	path := writeConfigFile(t, "queue:\n  max_size: 5\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	mgr := NewManager(cfg, path)

	var seen []int
	mgr.Subscribe(func(c *Config) { seen = append(seen, c.Queue.MaxSize) })
	mgr.Subscribe(func(*Config) { panic("subscriber failure") })
	mgr.Subscribe(func(c *Config) { seen = append(seen, c.Queue.MaxSize*10) })

	if err := os.WriteFile(path, []byte("queue:\n  max_size: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if mgr.Get().Queue.MaxSize != 7 {
		t.Errorf("Get().Queue.MaxSize = %d, want 7", mgr.Get().Queue.MaxSize)
	}
	if len(seen) != 2 || seen[0] != 7 || seen[1] != 70 {
		t.Errorf("subscribers saw %v, want [7 70]", seen)
	}
}

func TestManager_InvalidReloadKeepsPrevious(t *testing.T) {
	path := writeConfigFile(t, "queue:\n  max_size: 5\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	mgr := NewManager(cfg, path)

	called := false
	mgr.Subscribe(func(*Config) { called = true })

	if err := os.WriteFile(path, []byte("queue:\n  max_size: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Reload(); err == nil {
		t.Fatal("expected reload to be rejected")
	}
	if called {
		t.Error("subscriber should not see an invalid config")
	}
	if mgr.Get().Queue.MaxSize != 5 {
		t.Errorf("previous config should remain, got max_size %d", mgr.Get().Queue.MaxSize)
	}
}

func TestManager_WatchWithoutFile(t *testing.T) {
	mgr := NewManager(defaultConfig(), "")
	if err := mgr.Watch(); err != nil {
		t.Errorf("Watch without file: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
