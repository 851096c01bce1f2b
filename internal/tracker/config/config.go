package config

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Env       string        `yaml:"env" env:"ENV" env-default:"local"`
	HttpPort  string        `yaml:"http_port" env:"HTTP_PORT" env-default:"8080"`
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"72h"`
	Storage   Storage       `yaml:"storage"`
	Redis     Redis         `yaml:"redis"`
	Log       Log           `yaml:"log"`
	Seed      Seed          `yaml:"seed"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	DSN    string `yaml:"dsn" env:"STORAGE_DSN"`
}

// Redis with an empty Addr disables the leaderboard cache.
type Redis struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR"`
	Password       string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB             int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl" env:"REDIS_LEADERBOARD_TTL" env-default:"1m"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

type Seed struct {
	DemoUser bool `yaml:"demo_user" env:"SEED_DEMO_USER" env-default:"false"`
}

// Load reads the yaml file at path (if any) and then the environment.
// An empty path falls back to CONFIG_PATH.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, errors.Wrap(err, "cleanenv.ReadEnv failed: ")
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "config file %q", path)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, errors.Wrap(err, "cleanenv.ReadConfig failed: ")
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
