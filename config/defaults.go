// =============================================================================
// Default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Store:     DefaultStoreConfig(),
		Cache:     DefaultCacheConfig(),
		Providers: DefaultProvidersConfig(),
		RateLimit: DefaultRateLimitConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns default server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		PathPrefix:      "",
	}
}

// DefaultStoreConfig returns default document store settings.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		URI:            "",
		Database:       "mukoko_weather",
		ConnectTimeout: 10 * time.Second,
	}
}

// DefaultCacheConfig returns default Redis cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Addr:                "localhost:6379",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultProvidersConfig returns default provider settings. All keys are
// optional; absence triggers the documented degrade-to-fallback behaviour.
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		OpenMeteoBaseURL: "https://api.open-meteo.com/v1",
		AnthropicModel:   "claude-3-5-sonnet-20241022",
		NominatimBaseURL: "https://nominatim.openstreetmap.org",
		GeocodingBaseURL: "https://geocoding-api.open-meteo.com/v1",
		ElevationBaseURL: "https://api.open-meteo.com/v1",
	}
}

// DefaultRateLimitConfig returns the default per-action-per-hour limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Chat:           20,
		Followup:       30,
		ExploreSearch:  15,
		HistoryAnalyze: 10,
		ReportSubmit:   5,
		ReportClarify:  10,
		LocationCreate: 5,
	}
}

// DefaultLogConfig returns default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mukoko-weather",
		SampleRate:   0.1,
	}
}
