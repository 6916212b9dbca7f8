package types

// ServerConf contains the HTTP/WebSocket front-end configuration.
type ServerConf struct {
	Addr        string `ini:"addr"`     // listen address, host:port
	MCPPath     string `ini:"mcp_path"` // WebSocket endpoint path
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// DatabaseConf selects and configures the document store backend.
type DatabaseConf struct {
	Driver         string `ini:"driver"` // "mongo" or "file"
	URI            string `ini:"uri"`
	Name           string `ini:"name"`
	File           string `ini:"file"`            // path used by the file driver
	ConnectTimeout int    `ini:"connect_timeout"` // seconds
	QueryTimeout   int    `ini:"query_timeout"`   // seconds
}

// SearchConf configures the web search subsystem.
type SearchConf struct {
	UserAgent      string   `ini:"user_agent"`
	MaxResults     int      `ini:"max_results"`
	CacheTTL       int      `ini:"cache_ttl"` // seconds, drives the search_cache TTL index
	Socks5         string   `ini:"socks5"`    // optional outbound SOCKS5 proxy, host:port
	BlockedDomains []string `ini:"blocked_domains"`
}

// GrpcConf configures the gRPC health endpoint. An empty addr disables it.
type GrpcConf struct {
	HealthAddr string `ini:"health_addr"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// ProbeConf carries the smoke probe defaults.
type ProbeConf struct {
	URL            string `ini:"url"`
	TimeoutSeconds int    `ini:"timeout"` // 0 waits forever
}

// Config is the unified behavior configuration mapped from the .ini file.
type Config struct {
	ServerConf   `ini:"server"`
	DatabaseConf `ini:"database"`
	SearchConf   `ini:"search"`
	GrpcConf     `ini:"grpc"`
	LogConf      `ini:"log"`
	ProbeConf    `ini:"probe"`
}
