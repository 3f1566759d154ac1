package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"photark/internal/archive"
	"photark/internal/model"
	"photark/internal/testutil"
)

func newTestConfigStore(t *testing.T) (*ConfigStore, *testutil.MemoryStore, *testutil.StubClock) {
	t.Helper()
	docs := testutil.NewMemoryStore()
	clock := testutil.FixedClock()
	return NewConfigStore(docs, clock, nil), docs, clock
}

func TestConfigStore_Get(t *testing.T) {
	t.Run("unknown backend is nil", func(t *testing.T) {
		s, _, _ := newTestConfigStore(t)
		cfg, err := s.Get("nope")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if cfg != nil {
			t.Errorf("Get(unknown) = %v, want nil", cfg)
		}
	})

	t.Run("serves cached entry within TTL", func(t *testing.T) {
		s, docs, _ := newTestConfigStore(t)
		docs.SaveBackendConfig(&model.BackendConfig{ID: "b1", Type: "local", DisplayName: "one"})

		if _, err := s.Get("b1"); err != nil {
			t.Fatal(err)
		}

		// Change the store behind the cache's back.
		docs.SaveBackendConfig(&model.BackendConfig{ID: "b1", Type: "local", DisplayName: "two"})

		cfg, err := s.Get("b1")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.DisplayName != "one" {
			t.Errorf("DisplayName = %q, want cached %q", cfg.DisplayName, "one")
		}
	})

	t.Run("refetches after TTL", func(t *testing.T) {
		s, docs, clock := newTestConfigStore(t)
		docs.SaveBackendConfig(&model.BackendConfig{ID: "b1", Type: "local", DisplayName: "one"})

		if _, err := s.Get("b1"); err != nil {
			t.Fatal(err)
		}
		docs.SaveBackendConfig(&model.BackendConfig{ID: "b1", Type: "local", DisplayName: "two"})
		clock.Advance(2 * time.Minute)

		cfg, err := s.Get("b1")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.DisplayName != "two" {
			t.Errorf("DisplayName = %q, want refreshed %q", cfg.DisplayName, "two")
		}
	})

	t.Run("save invalidates cache", func(t *testing.T) {
		s, _, _ := newTestConfigStore(t)
		if err := s.Save(&model.BackendConfig{ID: "b1", Type: "local", DisplayName: "one"}); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get("b1"); err != nil {
			t.Fatal(err)
		}

		if err := s.Save(&model.BackendConfig{ID: "b1", Type: "local", DisplayName: "two"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := s.Get("b1")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.DisplayName != "two" {
			t.Errorf("DisplayName = %q, want %q after save", cfg.DisplayName, "two")
		}
	})
}

func TestConfigStore_Save(t *testing.T) {
	s, _, clock := newTestConfigStore(t)

	cfg := &model.BackendConfig{ID: "b1", Type: "local"}
	if err := s.Save(cfg); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	if !cfg.CreatedAt.Equal(clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", cfg.CreatedAt, clock.Now())
	}

	clock.Advance(time.Hour)
	if err := s.Save(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.CreatedAt.Equal(cfg.UpdatedAt) {
		t.Error("second Save() should only move UpdatedAt")
	}
}

func TestConfigStore_SetEnabled(t *testing.T) {
	t.Run("toggles and persists", func(t *testing.T) {
		s, docs, _ := newTestConfigStore(t)
		if err := s.Save(&model.BackendConfig{ID: "b1", Type: "local"}); err != nil {
			t.Fatal(err)
		}

		if err := s.SetEnabled("b1", true); err != nil {
			t.Fatalf("SetEnabled() unexpected error: %v", err)
		}
		stored, _ := docs.FindBackendConfig("b1")
		if !stored.Enabled {
			t.Error("backend not enabled in store")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		s, _, _ := newTestConfigStore(t)
		err := s.SetEnabled("nope", true)
		var cfgErr *archive.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("SetEnabled() error = %v, want *archive.ConfigError", err)
		}
	})
}

func TestConfigStore_SaveToken(t *testing.T) {
	s, docs, _ := newTestConfigStore(t)
	if err := s.Save(&model.BackendConfig{ID: "drive1", Type: "drive", Settings: map[string]string{}}); err != nil {
		t.Fatal(err)
	}

	expiry := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveToken("drive1", "at-new", "rt-new", expiry); err != nil {
		t.Fatalf("SaveToken() unexpected error: %v", err)
	}

	stored, _ := docs.FindBackendConfig("drive1")
	if stored.Settings[model.SettingAccessToken] != "at-new" {
		t.Errorf("access token = %q, want at-new", stored.Settings[model.SettingAccessToken])
	}
	if stored.Settings[model.SettingRefreshToken] != "rt-new" {
		t.Errorf("refresh token = %q, want rt-new", stored.Settings[model.SettingRefreshToken])
	}
	if stored.Settings[model.SettingTokenExpiry] != "2024-06-01T12:00:00Z" {
		t.Errorf("token expiry = %q, want 2024-06-01T12:00:00Z", stored.Settings[model.SettingTokenExpiry])
	}
}

func TestConfigStore_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("local backend with valid root", func(t *testing.T) {
		s, _, _ := newTestConfigStore(t)
		if err := s.Save(&model.BackendConfig{
			ID: "disk", Type: "local", Enabled: true,
			Settings: map[string]string{model.SettingRoot: t.TempDir()},
		}); err != nil {
			t.Fatal(err)
		}

		ok, err := s.Validate(ctx, "disk")
		if err != nil {
			t.Fatalf("Validate() unexpected error: %v", err)
		}
		if !ok {
			t.Error("Validate() = false for a reachable local backend")
		}
	})

	t.Run("not configured", func(t *testing.T) {
		s, _, _ := newTestConfigStore(t)
		_, err := s.Validate(ctx, "nope")
		var cfgErr *archive.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("Validate() error = %v, want *archive.ConfigError", err)
		}
	})

	t.Run("validate all", func(t *testing.T) {
		s, _, _ := newTestConfigStore(t)
		if err := s.Save(&model.BackendConfig{
			ID: "disk", Type: "local", Enabled: true,
			Settings: map[string]string{model.SettingRoot: t.TempDir()},
		}); err != nil {
			t.Fatal(err)
		}
		if err := s.Save(&model.BackendConfig{ID: "broken", Type: "unknown-type"}); err != nil {
			t.Fatal(err)
		}

		results, err := s.ValidateAll(ctx)
		if err != nil {
			t.Fatalf("ValidateAll() unexpected error: %v", err)
		}
		if !results["disk"] {
			t.Error("disk should validate")
		}
		if results["broken"] {
			t.Error("unbuildable backend should count as unreachable")
		}
	})
}
