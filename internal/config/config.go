package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"LISTEN_PORT" env-default:"8080"`
}

type Policy struct {
	AllowExpiredDelete bool `yaml:"allow_expired_delete" env:"POLICY_ALLOW_EXPIRED_DELETE" env-default:"false"`
}

type Mongo struct {
	Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"promoreg"`
}

type Telegram struct {
	Enabled  bool   `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
	ApiKey   string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatId   int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID" env-default:"0"`
	LogLevel string `yaml:"log_level" env:"TELEGRAM_LOG_LEVEL" env-default:"warn"`
	Queue    int    `yaml:"queue" env:"TELEGRAM_QUEUE" env-default:"256"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

// User is a static API user; Username is the caller identity used by the registry.
type User struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	Owner    string   `yaml:"owner" env:"OWNER" env-required:"true"`
	Listen   Listen   `yaml:"listen"`
	Policy   Policy   `yaml:"policy"`
	Mongo    Mongo    `yaml:"mongo"`
	Telegram Telegram `yaml:"telegram"`
	Metrics  Metrics  `yaml:"metrics"`
	Users    []User   `yaml:"users"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	once.Do(func() {
		conf, err := Load(path)
		if err != nil {
			log.Fatal(err)
		}
		instance = conf
	})
	return instance
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	return conf, nil
}
