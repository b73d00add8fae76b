package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type Config struct {
	APIServerHost string `env:"API_SERVER_HOST"`
	APIServerPort string `env:"API_SERVER_PORT" envDefault:"8090"`
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`

	DispatchWSURL    string `env:"DISPATCH_WS_URL"`
	TripUpdateURL    string `env:"TRIP_UPDATE_URL"`
	GeocodeBaseURL   string `env:"GEOCODE_BASE_URL"`
	DirectionsURL    string `env:"DIRECTIONS_BASE_URL"`
	GeocodeCountry   string `env:"GEOCODE_COUNTRY" envDefault:"in"`
	DriverID         string `env:"DRIVER_ID"`
	CabNumber        string `env:"CAB_NUMBER"`

	// Fallback coordinate used when no fix and no persisted position
	// is available. Defaults to Delhi.
	DefaultLatitude  float64 `env:"DEFAULT_LATITUDE" envDefault:"28.6139"`
	DefaultLongitude float64 `env:"DEFAULT_LONGITUDE" envDefault:"77.2090"`

	Env Env `env:"ENV" envDefault:"prod"`
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}
	return &cfg, nil
}
