package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "BOURSE_CONFIG"

type Config struct {
	Server  Server  `yaml:"server"`
	Metrics Metrics `yaml:"metrics"`
	Logging Logging `yaml:"logging"`
}

type Server struct {
	Address       string `yaml:"address"`
	Port          int    `yaml:"port"`
	// Workers caps concurrent client sessions. Each session holds a worker
	// until it disconnects or idles out; further connections are accepted
	// but not served until a worker frees up.
	Workers       int    `yaml:"workers"`
	IdleTimeoutMs int    `yaml:"idle_timeout_ms"`
}

// IdleTimeout is how long a client connection may sit without sending a message.
func (s Server) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMs) * time.Millisecond
}

func (s Server) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Default() Config {
	return Config{
		Server: Server{
			Address:       "0.0.0.0",
			Port:          9001,
			Workers:       10,
			IdleTimeoutMs: 60_000,
		},
		Metrics: Metrics{
			Enabled: true,
			Address: ":9090",
		},
		Logging: Logging{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load builds the configuration. Priority: env > YAML file > defaults.
// A .env file in the working directory is loaded into the environment first,
// if present. The YAML file is path, or $BOURSE_CONFIG when path is empty.
func Load(path string) (Config, error) {
	return LoadWith(path, Default())
}

// LoadWith is Load layered over base instead of Default.
func LoadWith(path string, base Config) (Config, error) {
	c := base

	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if v := os.Getenv("BOURSE_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if n, ok := envInt("BOURSE_PORT"); ok {
		c.Server.Port = n
	}
	if n, ok := envInt("BOURSE_WORKERS"); ok && n > 0 {
		c.Server.Workers = n
	}
	if n, ok := envInt("BOURSE_IDLE_TIMEOUT_MS"); ok && n > 0 {
		c.Server.IdleTimeoutMs = n
	}
	if v := os.Getenv("BOURSE_METRICS_ADDR"); v != "" {
		c.Metrics.Address = v
	}
	if v, ok := envBool("BOURSE_METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v := os.Getenv("BOURSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v, ok := envBool("BOURSE_LOG_PRETTY"); ok {
		c.Logging.Pretty = v
	}

	if c.Server.Workers <= 0 {
		c.Server.Workers = 1
	}
	return c, nil
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
