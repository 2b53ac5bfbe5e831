package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rfowler1994/project-archivist/internal/paths"
	"github.com/rfowler1994/project-archivist/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeySyncStrategy  = "sqlite_config.sync_strategy"
	cfgKeyBatchSize     = "sqlite_config.batch_size"
	cfgKeyBatchInterval = "sqlite_config.batch_interval"
)

// fileConfig is the content of config.yaml.
type fileConfig struct {
	Backend      string              `yaml:"backend"`
	DataDir      string              `yaml:"data_dir,omitempty"`
	SQLiteConfig *types.SQLiteConfig `yaml:"sqlite_config,omitempty"`
}

// defaultFileConfig is written to config.yaml on first run.
func defaultFileConfig() fileConfig {
	return fileConfig{
		Backend:      types.BackendSQLite,
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: types.SyncImmediate},
	}
}

// loadConfig reads config.yaml from the resolved config directory. It
// creates the directory and a default config.yaml on first run.
func (a *app) loadConfig() error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return systemError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = configDir

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return systemError(fmt.Errorf("create config dir: %w", err))
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir), defaultFileConfig()); err != nil {
		return systemError(fmt.Errorf("write default config: %w", err))
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return userError{fmt.Errorf("read config: %w", err)}
		}
	}

	a.cfg = fileConfig{
		Backend: v.GetString(cfgKeyBackend),
		DataDir: v.GetString(cfgKeyDataDir),
	}
	if v.IsSet(cfgKeySyncStrategy) || v.IsSet(cfgKeyBatchSize) || v.IsSet(cfgKeyBatchInterval) {
		a.cfg.SQLiteConfig = &types.SQLiteConfig{
			SyncStrategy:  v.GetString(cfgKeySyncStrategy),
			BatchSize:     v.GetInt(cfgKeyBatchSize),
			BatchInterval: v.GetInt(cfgKeyBatchInterval),
		}
	}
	return nil
}

// archiveConfig builds the Attach configuration from config.yaml and the
// data directory flag.
func (a *app) archiveConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.cfg.DataDir)
	if err != nil {
		return types.Config{}, systemError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg := types.Config{
		Backend:      a.cfg.Backend,
		DataDir:      dataDir,
		SQLiteConfig: a.cfg.SQLiteConfig,
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, userError{fmt.Errorf("config.yaml: %w", err)}
	}
	return cfg, nil
}

// writeConfigIfMissing creates path with cfg if the file does not exist.
func writeConfigIfMissing(path string, cfg fileConfig) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	body, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := "# archivist configuration\n" +
		"# data_dir is overridden by --data-dir and falls back to $" + paths.EnvDataDir + ".\n"
	return os.WriteFile(path, append([]byte(header), body...), 0o644)
}
