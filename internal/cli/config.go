package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/hoard/internal/storage"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyRoot      = "root"
	cfgKeyScheme    = "scheme"
	cfgKeyCatalog   = "catalog"
	cfgKeyLogLevel  = "log_level"
	cfgKeyLogFormat = "log_format"
	cfgKeyS3        = "export.s3"

	envPrefix = "HOARD"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# hoard configuration

# Image root (optional; overridable by --root and HOARD_DATA_DIR)
# root:

# Directory layout: kind or genre
scheme: kind

# SQLite catalog path (optional; defaults to the data directory)
# catalog:

# Logging
log_level: warn
log_format: text

# Export target for "hoard export --s3"
# export:
#   s3:
#     bucket:
#     prefix:
#     region:
#     endpoint:
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. A missing config.yaml is
// not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyScheme, "kind")
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "text")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// s3Config reads the export.s3 section. AutomaticEnv does not reach into
// Unmarshal, so each key is read individually.
func s3Config(v *viper.Viper) storage.S3Config {
	return storage.S3Config{
		Bucket:   v.GetString(cfgKeyS3 + ".bucket"),
		Prefix:   v.GetString(cfgKeyS3 + ".prefix"),
		Region:   v.GetString(cfgKeyS3 + ".region"),
		Endpoint: v.GetString(cfgKeyS3 + ".endpoint"),
	}
}
