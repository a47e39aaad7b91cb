package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigCache holds vendor feed configurations loaded from <vendorsDir>/<name>.yml.
type ConfigCache struct {
	vendorsDir string
	cache      map[string]*Config
	validate   *validator.Validate
	mu         sync.RWMutex
}

func NewConfigCache(vendorsDir string) *ConfigCache {
	return &ConfigCache{
		vendorsDir: vendorsDir,
		cache:      make(map[string]*Config),
		validate:   validator.New(),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.vendorsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.vendorsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		vendorName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(vendorName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "vendor", vendorName, "enabled", config.Settings.Enabled, "refresh_interval", config.Settings.RefreshInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(vendorName string) (*Config, error) {
	configFile := cc.getConfigFilePath(vendorName)
	vendorConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	vendorConfig.Name = vendorName

	if err := cc.validateConfig(vendorConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[vendorConfig.Name] = vendorConfig

	return vendorConfig, nil
}

func (cc *ConfigCache) GetConfig(vendorName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	vendorConfig, ok := cc.cache[vendorName]
	if !ok {
		return nil, fmt.Errorf("vendor config with name '%s' not found", vendorName)
	}
	return vendorConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var vendorConfig Config
	if err := yaml.Unmarshal(data, &vendorConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if vendorConfig.Settings.RefreshInterval == 0 {
		vendorConfig.Settings.RefreshInterval = 3600
	}
	if vendorConfig.Settings.MaxItems == 0 {
		vendorConfig.Settings.MaxItems = DefaultMaxItems
	}
	if vendorConfig.Settings.Timeout == 0 {
		vendorConfig.Settings.Timeout = 30
	}

	return &vendorConfig, nil
}

func (cc *ConfigCache) validateConfig(vendorConfig *Config) error {
	if vendorConfig == nil {
		return fmt.Errorf("vendorConfig is nil")
	}

	if err := cc.validate.Struct(vendorConfig); err != nil {
		return err
	}

	for i, filter := range vendorConfig.Filters {
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(vendorName string) string {
	return filepath.Join(cc.vendorsDir, vendorName+".yml")
}
