package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/johnstairs/pathenvconfig"
	"github.com/joho/godotenv"
)

const Prefix = "LIGHTSCHED"

type ConfigSpec struct {
	Server string `default:"127.0.0.1"`
	Port   int    `default:"20516"`

	// Request timeout in seconds.
	Timeout int `default:"100"`

	// Poll interval of the watch commands, as a Go duration.
	Interval string `default:"1s"`
}

// GetConfig reads LIGHTSCHED_* variables, after loading a .env file from
// the working directory when there is one.
func GetConfig() (ConfigSpec, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return ConfigSpec{}, fmt.Errorf("error loading .env file: %w", err)
	}

	config := ConfigSpec{}
	if err := pathenvconfig.Process(Prefix, &config); err != nil {
		return ConfigSpec{}, err
	}

	if err := config.Validate(); err != nil {
		return ConfigSpec{}, err
	}
	return config, nil
}

func (config ConfigSpec) Validate() error {
	if config.Server == "" {
		return errors.New("LIGHTSCHED_SERVER must not be empty")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("LIGHTSCHED_PORT must be between 1 and 65535, got %d", config.Port)
	}
	if config.Timeout <= 0 {
		return fmt.Errorf("LIGHTSCHED_TIMEOUT must be a positive number of seconds, got %d", config.Timeout)
	}
	if _, err := config.PollInterval(); err != nil {
		return err
	}
	return nil
}

func (config ConfigSpec) RequestTimeout() time.Duration {
	return time.Duration(config.Timeout) * time.Second
}

func (config ConfigSpec) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(config.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("LIGHTSCHED_INTERVAL must be a positive duration such as \"500ms\" or \"2s\", got %q", config.Interval)
	}
	return d, nil
}
