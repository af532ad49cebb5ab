// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек клиента
type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"local"`
	Backend        `yaml:"backend"`
	ReturnListener `yaml:"return_listener"`
	Signup         `yaml:"signup"`
}

// Backend структура для настройки подключения к API бэкенда
type Backend struct {
	BaseURL        string        `yaml:"base_url" env:"BACKEND_BASE_URL"`
	Timeout        time.Duration `yaml:"timeout" env-default:"10s"`
	CSRFRetries    int           `yaml:"csrf_retries" env-default:"3"`
	CSRFRetryDelay time.Duration `yaml:"csrf_retry_delay" env-default:"2s"`
	RequestsPerSec float64       `yaml:"requests_per_sec" env-default:"5"`
	RequestsBurst  int           `yaml:"requests_burst" env-default:"10"`
}

// ReturnListener структура для локального сервера возврата после оплаты
type ReturnListener struct {
	AddressListener string        `yaml:"address" env-default:"127.0.0.1:4242"`
	TimeoutListener time.Duration `yaml:"timeout" env-default:"5s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"30s"`
}

// Signup структура с таймингами сценария регистрации и оплаты
type Signup struct {
	ResendCooldown time.Duration `yaml:"resend_cooldown" env-default:"60s"`
	RedirectGrace  time.Duration `yaml:"redirect_grace" env-default:"2s"`
	LogoutDelay    time.Duration `yaml:"logout_delay" env-default:"3s"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Backend:\n"+
			"  BaseURL: %s\n"+
			"  Timeout: %s\n"+
			"  CSRFRetries: %d\n"+
			"  CSRFRetryDelay: %s\n"+
			"ReturnListener:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Signup:\n"+
			"  ResendCooldown: %s\n"+
			"  RedirectGrace: %s\n"+
			"  LogoutDelay: %s\n",
		c.Env,
		c.BaseURL,
		c.Timeout,
		c.CSRFRetries,
		c.CSRFRetryDelay,
		c.AddressListener,
		c.TimeoutListener,
		c.IdleTimeout,
		c.ResendCooldown,
		c.RedirectGrace,
		c.LogoutDelay,
	)
}
