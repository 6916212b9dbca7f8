package settings

// Module keys used for registration and update routing.
const (
	ModuleSearch  = "search"
	ModuleLogging = "logging"
)

// ConfigurableModule is implemented by every module whose configuration
// can be managed at runtime. The SettingsManager invokes the callback
// after an update to the module's section has been applied.
type ConfigurableModule interface {
	// OnSettingsUpdate is called with the module key (e.g. "search") and
	// a pointer to the parsed settings struct for that module.
	OnSettingsUpdate(moduleKey string, newSettings interface{}) error
}

// RuntimeSettings is the top-level structure of settings.json. Pointer
// fields stay nil when the file omits a module.
type RuntimeSettings struct {
	Search  *SearchSettings  `json:"search"`
	Logging *LoggingSettings `json:"logging"`
}

// SearchSettings holds the knobs of the web search scraper that can be
// changed without a restart.
type SearchSettings struct {
	MaxResults     int      `json:"max_results"`
	BlockedDomains []string `json:"blocked_domains"`
}

// LoggingSettings controls the global log level.
type LoggingSettings struct {
	Level string `json:"level"`
}

func createDefaultSettings() *RuntimeSettings {
	return &RuntimeSettings{
		Search: &SearchSettings{
			MaxResults:     10,
			BlockedDomains: []string{"facebook.com", "twitter.com", "instagram.com", "tiktok.com"},
		},
		Logging: &LoggingSettings{Level: "info"},
	}
}

func ensureDefaultModules(s *RuntimeSettings) {
	if s.Search == nil {
		s.Search = &SearchSettings{}
	}
	if s.Logging == nil {
		s.Logging = &LoggingSettings{}
	}
}
