package main

import (
	"context"
	"testing"
	"time"

	"AutoAgent/internal/config"
	xerrors "AutoAgent/internal/errors"
	"AutoAgent/internal/events"
	"AutoAgent/internal/storage"
)

// closeTrackingStore 记录 Close 调用次数。
type closeTrackingStore struct {
	*storage.MemoryStore
	closed int
}

func (s *closeTrackingStore) Close() error {
	s.closed++
	return nil
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := config.Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func stubBackends(t *testing.T, store storage.Store, publisherErr error) {
	t.Helper()
	prevResults, prevPublisher := openResultsFunc, openPublisherFunc
	t.Cleanup(func() {
		openResultsFunc, openPublisherFunc = prevResults, prevPublisher
	})
	openResultsFunc = func(context.Context, *config.Config) (storage.Store, error) { return store, nil }
	openPublisherFunc = func(*config.Config) (events.Publisher, error) {
		if publisherErr != nil {
			return nil, publisherErr
		}
		return events.Nop{}, nil
	}
}

func TestBuildRuntimeClosesOpenedBackendsOnFailure(t *testing.T) {
	cfg := loadTestConfig(t)
	store := &closeTrackingStore{MemoryStore: storage.NewMemoryStore()}
	stubBackends(t, store, xerrors.New(xerrors.CodeInitializationFailure, "broker unreachable"))

	rt, err := buildRuntime(context.Background(), cfg)
	if err == nil || rt != nil {
		t.Fatalf("expected failure, got runtime %v err %v", rt, err)
	}
	if store.closed != 1 {
		t.Fatalf("results store closed %d times, want 1", store.closed)
	}
}

func TestBuildRuntimeCloseReleasesEverything(t *testing.T) {
	cfg := loadTestConfig(t)
	store := &closeTrackingStore{MemoryStore: storage.NewMemoryStore()}
	stubBackends(t, store, nil)

	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if rt.tools == nil || rt.memory == nil || !rt.localMemory {
		t.Fatalf("runtime not fully built: %+v", rt)
	}
	if store.closed != 0 {
		t.Fatalf("store closed before Close")
	}
	rt.Close()
	rt.Close()
	if store.closed != 1 {
		t.Fatalf("results store closed %d times, want 1", store.closed)
	}
}

func TestBuildRuntimeLLMFailureIsFatal(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.LLM.OpenAI.APIKey = ""
	cfg.LLM.OpenAI.APIKeyEnv = "AUTOAGENT_TEST_MISSING_KEY"
	store := &closeTrackingStore{MemoryStore: storage.NewMemoryStore()}
	stubBackends(t, store, nil)

	_, err := buildRuntime(context.Background(), cfg)
	if !xerrors.IsFatal(err) || xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.closed != 0 {
		t.Fatalf("no backend should have been opened")
	}
}

func TestMySQLConfigMapsPoolSettings(t *testing.T) {
	got := mysqlConfig(config.MySQLConfig{
		DSN:                    "agent@tcp(db:3306)/autoagent",
		MaxOpenConns:           8,
		MaxIdleConns:           3,
		ConnMaxLifetimeSeconds: 1800,
		ConnMaxIdleTimeSeconds: 300,
	})
	if got.DSN != "agent@tcp(db:3306)/autoagent" || got.MaxOpenConns != 8 || got.MaxIdleConns != 3 {
		t.Fatalf("unexpected config %+v", got)
	}
	if got.ConnMaxLifetime != 30*time.Minute || got.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("unexpected durations %+v", got)
	}
}
