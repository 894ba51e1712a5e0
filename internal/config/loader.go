package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/logger"
)

const moduleName = "config"

var supportedDatabaseTypes = map[string]bool{"mysql": true, "postgres": true, "sqlite": true}

var supportedCompressions = map[string]bool{"SNAPPY": true, "GZIP": true, "NONE": true}

var supportedStorageTypes = map[string]bool{"local": true, "gcs": true}

var supportedOTLPProtocols = map[string]bool{"grpc": true, "http": true}

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// LoadConfig builds the configuration: defaults, then the embedded YAML with
// ${VAR} references expanded, then environment overrides. The .env file at
// envFilePath (or ./.env) is loaded into the environment first.
func LoadConfig(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	// Fields absent from the YAML keep their defaults.
	expanded := os.ExpandEnv(string(embedded))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to unmarshal embedded config", err)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewConfigError(moduleName, "failed to load config from environment variables", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an fx provider that loads the configuration and applies the log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.App.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.App.System.Logging.Level)
	return cfg, nil
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	app := c.App
	if app.Schedule.IntervalSeconds <= 0 {
		return exception.NewConfigError(moduleName, fmt.Sprintf("schedule.interval_seconds must be positive, got %d", app.Schedule.IntervalSeconds), nil)
	}
	if app.Schedule.CallTimeoutSeconds <= 0 {
		return exception.NewConfigError(moduleName, fmt.Sprintf("schedule.call_timeout_seconds must be positive, got %d", app.Schedule.CallTimeoutSeconds), nil)
	}
	if _, err := time.LoadLocation(app.System.Timezone); err != nil {
		return exception.NewConfigError(moduleName, fmt.Sprintf("invalid system.timezone %q", app.System.Timezone), err)
	}
	dbCfg, err := c.DatabaseConfig(app.Store.Ref)
	if err != nil {
		return err
	}
	if !supportedDatabaseTypes[dbCfg.Type] {
		return exception.NewConfigError(moduleName, fmt.Sprintf("unknown database type %q for connection '%s'", dbCfg.Type, app.Store.Ref), nil)
	}
	if app.Export.Enabled {
		if !supportedCompressions[strings.ToUpper(app.Export.Compression)] {
			return exception.NewConfigError(moduleName, fmt.Sprintf("unknown export.compression %q", app.Export.Compression), nil)
		}
		st := app.Export.Storage
		if !supportedStorageTypes[st.Type] {
			return exception.NewConfigError(moduleName, fmt.Sprintf("unknown export.storage.type %q", st.Type), nil)
		}
		if st.Type == "local" && st.BaseDir == "" {
			return exception.NewConfigError(moduleName, "export.storage.base_dir is required for local storage", nil)
		}
		if st.Type == "gcs" && st.BucketName == "" {
			return exception.NewConfigError(moduleName, "export.storage.bucket_name is required for gcs storage", nil)
		}
	}
	if otlp := app.Metrics.OTLP; otlp.Endpoint != "" && !supportedOTLPProtocols[otlp.Protocol] {
		return exception.NewConfigError(moduleName, fmt.Sprintf("unknown metrics.otlp.protocol %q", otlp.Protocol), nil)
	}
	return nil
}

// DatabaseConfig decodes the named entry of the database section.
func (c *Config) DatabaseConfig(name string) (DatabaseConfig, error) {
	var dbConfig DatabaseConfig
	raw, ok := c.App.Database[name]
	if !ok {
		return dbConfig, exception.NewConfigError(moduleName, fmt.Sprintf("database configuration '%s' not found", name), nil)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &dbConfig,
	})
	if err != nil {
		return dbConfig, exception.NewConfigError(moduleName, "failed to build database config decoder", err)
	}
	if err := dec.Decode(raw); err != nil {
		return dbConfig, exception.NewConfigError(moduleName, fmt.Sprintf("failed to decode database config for '%s'", name), err)
	}
	return dbConfig, nil
}

// Location returns the configured display time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.System.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// loadStructFromEnv overrides struct fields from environment variables named
// after their yaml tags, e.g. APP_SCHEDULE_INTERVAL_SECONDS.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
				loadRawMapsFromEnv(field, envVarName+"_")
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadRawMapsFromEnv sets entries of a map[string]interface{} section from
// variables shaped <PREFIX><NAME>_<KEY>, e.g. APP_DATABASE_DEFAULT_HOST.
// Nested keys are not addressable this way; values stay strings and are
// converted when the entry is decoded.
func loadRawMapsFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		keyAndField, value, ok := strings.Cut(strings.TrimPrefix(env, prefix), "=")
		if !ok {
			continue
		}
		mapKey, fieldName, ok := strings.Cut(keyAndField, "_")
		if !ok || mapKey == "" || fieldName == "" {
			continue
		}
		mapKey = strings.ToLower(mapKey)

		entry := map[string]interface{}{}
		if existing := mapField.MapIndex(reflect.ValueOf(mapKey)); existing.IsValid() {
			if m, ok := existing.Interface().(map[string]interface{}); ok {
				entry = m
			}
		}
		entry[strings.ToLower(fieldName)] = value
		mapField.SetMapIndex(reflect.ValueOf(mapKey), reflect.ValueOf(entry))
	}
}

// setField sets a scalar field from its string form.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
