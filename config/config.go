package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	ColdTrack ColdTrackConfig `yaml:"coldtrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	TelemetryTopicName string `yaml:"telemetry_topic_name"`
	AlertTopicName     string `yaml:"alert_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ColdTrackConfig struct {
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`
	RequestTimeoutSeconds   int    `yaml:"request_timeout_seconds"`

	TelemetryRatePerMinute int `yaml:"telemetry_rate_per_minute"`

	// Permissions: роль -> список статусов, которые она может выставлять.
	// Пусто — берутся встроенные правила (клиент только отменяет и т.д.).
	Permissions map[string][]string `yaml:"permissions"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// Rules converts the configured permission table to the state machine's
// shape; returns nil when the config leaves permissions empty.
func (c *ColdTrackConfig) Rules() map[string]map[string]bool {
	if len(c.Permissions) == 0 {
		return nil
	}
	out := make(map[string]map[string]bool, len(c.Permissions))
	for role, statuses := range c.Permissions {
		set := make(map[string]bool, len(statuses))
		for _, s := range statuses {
			set[s] = true
		}
		out[role] = set
	}
	return out
}
