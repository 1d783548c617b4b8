package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN             string
	ServerPort        string
	SessionSecret     string
	EscalationWebhook string // default red-channel contact; metrics may carry their own
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:             os.Getenv("DB_DSN"),
		ServerPort:        os.Getenv("SERVER_PORT"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		EscalationWebhook: os.Getenv("ESCALATION_WEBHOOK"),
	}

	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET is not set")
	}
	if cfg.EscalationWebhook == "" {
		log.Println("ESCALATION_WEBHOOK is not set; red escalations without a metric contact will be dropped")
	}

	return cfg
}
