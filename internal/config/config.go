package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/debemdeboas/postkey/internal/buttons"
)

const EnvPrefix = "POSTKEY_"

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

var ErrMissingToken = errors.New("bot token is not configured")

// Config represents the complete configuration structure
type Config struct {
	Version   string          `yaml:"version" default:"1"`
	Bot       BotConfig       `yaml:"bot" envPrefix:"BOT_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Templates TemplatesConfig `yaml:"templates" envPrefix:"TEMPLATES_"`
	Buttons   ButtonsConfig   `yaml:"buttons" envPrefix:"BUTTONS_"`
	Dispatch  DispatchConfig  `yaml:"dispatch" envPrefix:"DISPATCH_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
}

type BotConfig struct {
	Token       string   `yaml:"token" env:"TOKEN" default:""`
	PollTimeout int      `yaml:"poll_timeout" env:"POLL_TIMEOUT" default:"30"`
	AllowFrom   []string `yaml:"allow_from" env:"ALLOW_FROM" default:""`

	// Per-user flood control.
	EventsPerSecond float64 `yaml:"events_per_second" env:"EVENTS_PER_SECOND" default:"5"`
	Burst           int     `yaml:"burst" env:"BURST" default:"10"`
}

type StorageConfig struct {
	Path        string `yaml:"path" env:"PATH" default:"./templates.db"`
	Compression string `yaml:"compression" env:"COMPRESSION" default:"zstd"`
}

type TemplatesConfig struct {
	KeyAttempts     int           `yaml:"key_attempts" env:"KEY_ATTEMPTS" default:"5"`
	TitleLength     int           `yaml:"title_length" env:"TITLE_LENGTH" default:"30"`
	ListLimit       int           `yaml:"list_limit" env:"LIST_LIMIT" default:"50"`
	InlineListLimit int           `yaml:"inline_list_limit" env:"INLINE_LIST_LIMIT" default:"10"`
	Retention       time.Duration `yaml:"retention" env:"RETENTION" default:"720h"`
}

type ButtonsConfig struct {
	Schemes           []string `yaml:"schemes" env:"SCHEMES" default:"http://,https://,tg://"`
	ShortLinkPrefixes []string `yaml:"short_link_prefixes" env:"SHORT_LINK_PREFIXES" default:""`
}

// Grammar builds the button grammar the bot and the import tool share.
func (b ButtonsConfig) Grammar() buttons.Grammar {
	return buttons.Grammar{
		Schemes:           b.Schemes,
		ShortLinkPrefixes: b.ShortLinkPrefixes,
	}
}

type DispatchConfig struct {
	Workers   int `yaml:"workers" env:"WORKERS" default:"8"`
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE" default:"64"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED" default:"false"`
	Addr    string `yaml:"addr" env:"ADDR" default:"127.0.0.1:9464"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL" default:"info"`
	Format string `yaml:"format" env:"FORMAT" default:"console"`
}

var AppConfig *Config

// LoadConfig reads path (a missing file means defaults), then lets .env and
// POSTKEY_* environment variables override what the file says.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf(ErrParseConfigFmt, err)
		}
	case errors.Is(err, os.ErrNotExist):
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf(ErrReadConfigFmt, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		configLogger.Warn().Err(err).Msg("Error loading .env file")
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf(ErrParseEnvFmt, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	AppConfig = config
	return config, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Templates.KeyAttempts < 1:
		return fmt.Errorf(ErrInvalidValueFmt, "templates.key_attempts", c.Templates.KeyAttempts)
	case c.Templates.Retention <= 0:
		// Zero would make every start-up sweep delete all templates.
		return fmt.Errorf(ErrInvalidValueFmt, "templates.retention", c.Templates.Retention)
	case c.Dispatch.Workers < 1:
		return fmt.Errorf(ErrInvalidValueFmt, "dispatch.workers", c.Dispatch.Workers)
	case len(c.Buttons.Schemes) == 0:
		return fmt.Errorf(ErrInvalidValueFmt, "buttons.schemes", c.Buttons.Schemes)
	}
	return nil
}

// RequireToken is checked only by commands that talk to the chat API.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Bot.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if d, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(d))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
