package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Broker   BrokerConfig   `yaml:"broker"`
	Flights  FlightsConfig  `yaml:"flights"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type BrokerConfig struct {
	URL string `yaml:"url"`
}

type FlightsConfig struct {
	ServiceURL string `yaml:"service_url"`
}

type GatewayConfig struct {
	BookingServiceURL string `yaml:"booking_service_url"`
	TripServiceURL    string `yaml:"trip_service_url"`
}

// Load reads the YAML config at path (skipped when path is empty) and then
// applies environment overrides, so container deployments can run without a
// config file at all.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideFromEnv(&cfg.HTTP.Addr, "HTTP_ADDR")
	overrideFromEnv(&cfg.Database.URL, "POSTGRES_URL")
	overrideFromEnv(&cfg.Broker.URL, "AMQP_URL")
	overrideFromEnv(&cfg.Flights.ServiceURL, "FLIGHT_SERVICE_URL")
	overrideFromEnv(&cfg.Gateway.BookingServiceURL, "BOOKING_SERVICE_URL")
	overrideFromEnv(&cfg.Gateway.TripServiceURL, "TRIP_SERVICE_URL")

	return &cfg, nil
}

func overrideFromEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
