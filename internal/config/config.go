package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoryConfig is the versioned story.yaml session configuration.
type StoryConfig struct {
	Version int `yaml:"version"`
	Story   struct {
		ID    string `yaml:"id"`
		Title string `yaml:"title"`
		Seed  struct {
			Label string `yaml:"label"`
			Body  string `yaml:"body"`
		} `yaml:"seed"`
	} `yaml:"story"`
	Economy struct {
		StartingGold     int `yaml:"starting_gold"`
		XPPerLevel       int `yaml:"xp_per_level"`
		LevelBonusGold   int `yaml:"level_bonus_gold"`
		VictoryBonusGold int `yaml:"victory_bonus_gold"`
	} `yaml:"economy"`
	Audit struct {
		Size int `yaml:"size"`
	} `yaml:"audit"`
	Network struct {
		APIPort int    `yaml:"api_port"`
		MQTTURL string `yaml:"mqtt_url"`
	} `yaml:"network"`
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *StoryConfig) APIPort() int {
	if c.Network.APIPort == 0 {
		return 8080
	}
	return c.Network.APIPort
}

// LoadStoryConfig reads and validates a story.yaml file.
func LoadStoryConfig(path string) (*StoryConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg StoryConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported story.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}
