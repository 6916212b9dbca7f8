package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type recordingModule struct {
	notified chan interface{}
}

func (r *recordingModule) OnSettingsUpdate(moduleKey string, newSettings interface{}) error {
	r.notified <- newSettings
	return nil
}

func TestNewSettingsManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	sm, err := NewSettingsManager(path)
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	s := sm.Get()
	if s.Search == nil || s.Search.MaxResults != 10 {
		t.Errorf("default search settings missing: %+v", s.Search)
	}
	if s.Logging == nil || s.Logging.Level != "info" {
		t.Errorf("default logging settings missing: %+v", s.Logging)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default settings file not written: %v", err)
	}
}

func TestSettingsManagerLoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"search":{"max_results":3,"blocked_domains":["spam.example"]}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	sm, err := NewSettingsManager(path)
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	s := sm.Get()
	if s.Search.MaxResults != 3 {
		t.Errorf("search settings not loaded: %+v", s.Search)
	}
	if s.Logging == nil {
		t.Error("missing module should be filled with an empty struct")
	}
}

func TestSettingsManagerUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	sm, err := NewSettingsManager(path)
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}

	sub := &recordingModule{notified: make(chan interface{}, 1)}
	sm.Register(ModuleSearch, sub)

	before := sm.Get()
	raw := json.RawMessage(`{"max_results":5,"blocked_domains":["a.example","b.example"]}`)
	if err := sm.Update(ModuleSearch, raw); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	after := sm.Get()
	if after == before {
		t.Error("update should swap the settings pointer")
	}
	if after.Search.MaxResults != 5 || len(after.Search.BlockedDomains) != 2 {
		t.Errorf("update not applied: %+v", after.Search)
	}
	if before.Search.MaxResults != 10 {
		t.Errorf("old snapshot mutated: %+v", before.Search)
	}

	select {
	case got := <-sub.notified:
		s, ok := got.(*SearchSettings)
		if !ok {
			t.Fatalf("subscriber received %T, want *SearchSettings", got)
		}
		if s.MaxResults != 5 {
			t.Errorf("subscriber received stale settings: %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not notified")
	}

	// The update must also land on disk.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var persisted RuntimeSettings
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("persisted settings unreadable: %v", err)
	}
	if persisted.Search.MaxResults != 5 {
		t.Errorf("persisted settings stale: %+v", persisted.Search)
	}
}

func TestSettingsManagerUnknownModule(t *testing.T) {
	sm, err := NewSettingsManager("")
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	if err := sm.Update("bogus", json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for unknown module key")
	}
}
