package config

import (
	"log"
	"os"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	ClientID     string
	ClientSecret string
	Host         string // base pública; arma el redirect_uri de OAuth
	Site         string // clave de site_settings
	OwnerTag     string // tag del dueño del sitio (bypassa guilds ocultos)
	HTTPAddr     string // opcional, default :8080
}

func Load() Config {
	get := func(k string, req bool) string {
		v := os.Getenv(k)
		if v == "" && req {
			log.Fatalf("faltante env %s", k)
		}
		return v
	}

	cfg := Config{
		DatabaseURL:  get("DATABASE_URL", true),
		DiscordToken: get("DISCORD_BOT_TOKEN", true),
		ClientID:     get("CLIENT_ID", true),
		ClientSecret: get("CLIENT_SECRET", true),
		Host:         get("HOST", true),
		Site:         get("SITE", true),
		OwnerTag:     get("OWNER_TAG", false),
		HTTPAddr:     get("HTTP_ADDR", false),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg
}
