// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ConfigFileName   = "config.json"
	ConfigDirName    = "bucketmirror"
	LegacyConfigFile = "bucketmirror.json"
	EnvPrefix        = "BUCKETMIRROR"

	DefaultThreads   = 4
	DefaultBatchSize = 100
)

type AWSConfig struct {
	Region    string `mapstructure:"region" json:"region,omitempty"`
	Profile   string `mapstructure:"profile" json:"profile,omitempty"`
	Endpoint  string `mapstructure:"endpoint" json:"endpoint,omitempty" validate:"omitempty,url"`
	PathStyle bool   `mapstructure:"path_style" json:"path_style,omitempty"`
}

type GCPConfig struct {
	Project         string `mapstructure:"project" json:"project,omitempty"`
	CredentialsFile string `mapstructure:"credentials_file" json:"credentials_file,omitempty"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint,omitempty" validate:"omitempty,url"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint,omitempty" validate:"omitempty,hostname_port"`
	AccessKey string `mapstructure:"access_key" json:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key,omitempty"`
	UseSSL    bool   `mapstructure:"use_ssl" json:"use_ssl,omitempty"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
}

type SyncConfig struct {
	Provider  string   `mapstructure:"provider" json:"provider,omitempty"`
	Bucket    string   `mapstructure:"bucket" json:"bucket,omitempty"`
	Prefix    string   `mapstructure:"prefix" json:"prefix,omitempty"`
	Threads   int      `mapstructure:"threads" json:"threads,omitempty" validate:"gte=1,lte=256"`
	BatchSize int      `mapstructure:"batch_size" json:"batch_size,omitempty" validate:"gte=1,lte=100000"`
	Exclude   []string `mapstructure:"exclude" json:"exclude,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format,omitempty" validate:"omitempty,oneof=text json"`
	File   string `mapstructure:"file" json:"file,omitempty"`
}

type Config struct {
	AWS   *AWSConfig   `mapstructure:"aws" json:"aws,omitempty" validate:"omitempty"`
	GCP   *GCPConfig   `mapstructure:"gcp" json:"gcp,omitempty" validate:"omitempty"`
	MinIO *MinIOConfig `mapstructure:"minio" json:"minio,omitempty" validate:"omitempty"`
	Sync  *SyncConfig  `mapstructure:"sync" json:"sync,omitempty" validate:"required"`
	Log   *LogConfig   `mapstructure:"log" json:"log,omitempty" validate:"required"`
}

// Every key accepted by 'config set', in display order
var knownKeys = []string{
	"aws.region", "aws.profile", "aws.endpoint", "aws.path_style",
	"gcp.project", "gcp.credentials_file", "gcp.endpoint",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.use_ssl", "minio.region",
	"sync.provider", "sync.bucket", "sync.prefix", "sync.threads", "sync.batch_size", "sync.exclude",
	"log.level", "log.format", "log.file",
}

func KnownKeys() []string {
	return append([]string(nil), knownKeys...)
}

func isKnownKey(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ConfigManager owns two viper instances: one bound to the config file only (what 'config set' persists)
// and one layering defaults, the file and environment variables (what a run sees)
type ConfigManager struct {
	file      *viper.Viper
	effective *viper.Viper
	path      string
	validate  *validator.Validate
}

func NewConfigManager() (*ConfigManager, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewConfigManagerWithPath(path)
}

// NewConfigManagerWithPath loads the JSON config at path. A missing file is not an error
func NewConfigManagerWithPath(path string) (*ConfigManager, error) {
	// A missing .env is the common case
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("json")
	if err := file.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	cm := &ConfigManager{
		file:     file,
		path:     path,
		validate: validator.New(),
	}
	cm.rebuild()
	return cm, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func (cm *ConfigManager) rebuild() {
	v := viper.New()
	v.SetDefault("sync.threads", DefaultThreads)
	v.SetDefault("sync.batch_size", DefaultBatchSize)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows about, Unmarshal needs them bound explicitly
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}

	_ = v.MergeConfigMap(pruneEmpty(cm.file.AllSettings()))
	cm.effective = v
}

// Deleted keys are persisted as "" and must not shadow defaults
func pruneEmpty(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		switch val := v.(type) {
		case map[string]interface{}:
			if nested := pruneEmpty(val); len(nested) > 0 {
				out[k] = nested
			}
		case string:
			if val != "" {
				out[k] = val
			}
		default:
			if v != nil {
				out[k] = v
			}
		}
	}
	return out
}

// Path returns the location of the config file
func (cm *ConfigManager) Path() string {
	return cm.path
}

// LoadConfig decodes and validates the effective configuration
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	var cfg Config
	err := cm.effective.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		trimSliceHook(),
	)))
	if err != nil {
		return nil, fmt.Errorf("error decoding configuration: %w", err)
	}

	if cfg.Sync == nil {
		cfg.Sync = &SyncConfig{Threads: DefaultThreads, BatchSize: DefaultBatchSize}
	}
	if cfg.Log == nil {
		cfg.Log = &LogConfig{Level: "info", Format: "text"}
	}

	if err := cm.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Drops blank entries produced by "a, ,b" or a trailing comma
func trimSliceHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		items, ok := data.([]string)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(items))
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
}

func (cm *ConfigManager) SetValue(key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("unknown config key: %s. Known keys: %s", key, strings.Join(knownKeys, ", "))
	}
	cm.file.Set(key, value)
	return cm.save()
}

// GetValue returns the effective value for key, including defaults and environment overrides
func (cm *ConfigManager) GetValue(key string) (string, bool) {
	if !cm.effective.IsSet(key) {
		return "", false
	}
	val := cm.effective.Get(key)
	if val == nil {
		return "", false
	}
	return fmt.Sprintf("%v", val), true
}

// DeleteValue clears key in the config file. viper cannot unset a key, so it is stored as empty
func (cm *ConfigManager) DeleteValue(key string) (bool, error) {
	if !cm.file.IsSet(key) {
		return false, nil
	}
	if s, ok := cm.file.Get(key).(string); ok && s == "" {
		return false, nil
	}
	cm.file.Set(key, "")
	if err := cm.save(); err != nil {
		return false, err
	}
	return true, nil
}

// GetAllSettings returns the settings stored in the config file
func (cm *ConfigManager) GetAllSettings() map[string]interface{} {
	return cm.file.AllSettings()
}

func (cm *ConfigManager) save() error {
	if err := os.MkdirAll(filepath.Dir(cm.path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := cm.file.WriteConfigAs(cm.path); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	cm.rebuild()
	return nil
}

func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".config", ConfigDirName, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	if _, err := os.Stat(LegacyConfigFile); err == nil {
		if err := migrateConfig(LegacyConfigFile, configPath); err == nil {
			return configPath, nil
		}
		return LegacyConfigFile, nil
	}

	return configPath, nil
}

func migrateConfig(sourcePath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("error reading source config file: %w", err)
	}

	if err := os.WriteFile(destPath, data, 0600); err != nil {
		return fmt.Errorf("error writing destination config file: %w", err)
	}

	return nil
}
