package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// playerConfig holds only kiosk-relevant configuration. Credentials can
// come from the config file or SENSORVISION_* environment variables so
// they stay out of process listings on shared displays.
type playerConfig struct {
	ServerURL  string `mapstructure:"server-url"`
	ShareToken string `mapstructure:"share-token"`
	PlaylistID int64  `mapstructure:"playlist-id"`
	Token      string `mapstructure:"token"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
}

func loadPlayerConfig(configPath string) (playerConfig, error) {
	var cfg playerConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SENSORVISION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("server-url", "http://localhost:8080")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "sensorvision", "player.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
