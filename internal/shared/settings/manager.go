package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// SettingsManager owns the runtime configuration. Reads are lock-free
// through an atomic pointer; updates go through a publish/subscribe
// cycle so that live modules pick up changes without a restart.
type SettingsManager struct {
	filePath    string
	settings    atomic.Value // holds a *RuntimeSettings
	subscribers map[string][]ConfigurableModule
	mu          sync.RWMutex // guards subscribers and file writes
}

// NewSettingsManager loads settings from filePath, creating the file
// with defaults when it does not exist. An empty path runs the manager
// in memory only.
func NewSettingsManager(filePath string) (*SettingsManager, error) {
	sm := &SettingsManager{
		filePath:    filePath,
		subscribers: make(map[string][]ConfigurableModule),
	}

	if filePath == "" {
		sm.settings.Store(createDefaultSettings())
		return sm, nil
	}

	if err := sm.load(); err != nil {
		return nil, fmt.Errorf("failed to load initial settings: %w", err)
	}
	return sm, nil
}

func (sm *SettingsManager) load() error {
	data, err := os.ReadFile(sm.filePath)
	settings := &RuntimeSettings{}

	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", sm.filePath).Msg("settings.json not found, creating with default values")
			settings = createDefaultSettings()
			if err := sm.persist(settings); err != nil {
				return fmt.Errorf("failed to write default settings file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to read settings file: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, settings); err != nil {
			return fmt.Errorf("failed to parse settings.json: %w", err)
		}
		ensureDefaultModules(settings)
	}

	sm.settings.Store(settings)
	return nil
}

// Register subscribes a module to updates of the given settings key.
func (sm *SettingsManager) Register(moduleKey string, module ConfigurableModule) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.subscribers[moduleKey] = append(sm.subscribers[moduleKey], module)
}

// Get returns the current settings snapshot without locking.
func (sm *SettingsManager) Get() *RuntimeSettings {
	return sm.settings.Load().(*RuntimeSettings)
}

// Update parses the raw JSON for one module, persists the merged
// settings and notifies subscribers asynchronously.
func (sm *SettingsManager) Update(moduleKey string, newSettingsData json.RawMessage) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	currentSettings := sm.Get()
	newSettings := deepCopy(currentSettings)

	targetModule := getModuleByKey(newSettings, moduleKey)
	if targetModule == nil {
		return fmt.Errorf("unknown settings module: %s", moduleKey)
	}
	if err := json.Unmarshal(newSettingsData, targetModule); err != nil {
		return fmt.Errorf("failed to parse JSON for module %s: %w", moduleKey, err)
	}

	if sm.filePath != "" {
		if err := sm.persist(newSettings); err != nil {
			return fmt.Errorf("failed to save updated settings to disk: %w", err)
		}
	}

	sm.settings.Store(newSettings)

	go sm.notify(moduleKey, targetModule)

	return nil
}

func (sm *SettingsManager) persist(settings *RuntimeSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sm.filePath, data, 0644)
}

func (sm *SettingsManager) notify(moduleKey string, newSettings interface{}) {
	sm.mu.RLock()
	subscribers, ok := sm.subscribers[moduleKey]
	sm.mu.RUnlock()

	if ok {
		log.Debug().Str("module", moduleKey).Int("subscribers", len(subscribers)).Msg("notifying subscribers of settings update")
		for _, sub := range subscribers {
			if err := sub.OnSettingsUpdate(moduleKey, newSettings); err != nil {
				log.Error().Err(err).Str("module", moduleKey).Msg("error notifying subscriber")
			}
		}
	}
}

func deepCopy(s *RuntimeSettings) *RuntimeSettings {
	newS := *s
	if s.Search != nil {
		searchCopy := *s.Search
		searchCopy.BlockedDomains = append([]string(nil), s.Search.BlockedDomains...)
		newS.Search = &searchCopy
	}
	if s.Logging != nil {
		loggingCopy := *s.Logging
		newS.Logging = &loggingCopy
	}
	return &newS
}

func getModuleByKey(s *RuntimeSettings, key string) interface{} {
	switch key {
	case ModuleSearch:
		return s.Search
	case ModuleLogging:
		return s.Logging
	default:
		return nil
	}
}
