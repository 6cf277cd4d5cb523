package config

const (
	ErrReadConfigFmt   = "failed to read config file: %w"
	ErrParseConfigFmt  = "failed to parse config file: %w"
	ErrParseEnvFmt     = "failed to parse environment: %w"
	ErrInvalidValueFmt = "invalid config value for %s: %v"
)
