package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/jose-valero/gamenight-bot/internal/adapters/discord"
	"github.com/jose-valero/gamenight-bot/internal/adapters/httpapi"
	"github.com/jose-valero/gamenight-bot/internal/adapters/notify"
	"github.com/jose-valero/gamenight-bot/internal/adapters/oauth"
	"github.com/jose-valero/gamenight-bot/internal/app/service"
	"github.com/jose-valero/gamenight-bot/internal/infra/config"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// DB
	db, err := storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal("migrate:", err)
	}
	log.Println("✅ DB lista y migrada")

	// Repos
	sessionsRepo := storage.NewSessionRepo(db)
	configsRepo := storage.NewGuildConfigRepo(db)
	gamesRepo := storage.NewGameRepo(db)
	usersRepo := storage.NewUserRepo(db)
	siteRepo := storage.NewSiteRepo(db)

	// Discord session (el state de guilds/members alimenta el directory)
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Fatal(err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	if err := s.Open(); err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	log.Printf("✅ Conectado como %s (%s)", s.State.User.Username, s.State.User.ID)

	// Adapters
	dir := discord.NewDirectory(s, logger)
	gateway := oauth.New(cfg.ClientID, cfg.ClientSecret, cfg.Host+"/login", sessionsRepo)
	hub := notify.NewHub(logger)

	// Services
	authSvc := service.NewAuthService(gateway, sessionsRepo)
	accountSvc := service.NewAccountService(gateway, dir, configsRepo, gamesRepo, usersRepo, cfg.OwnerTag)
	gameSvc := service.NewGameService(dir, configsRepo, gamesRepo, hub)
	configSvc := service.NewConfigService(dir, configsRepo, usersRepo, siteRepo, hub, cfg.Site, cfg.OwnerTag)

	web := httpapi.New(authSvc, accountSvc, gameSvc, configSvc, hub)
	go web.Start(cfg.HTTPAddr)

	// Pruner de sesiones vencidas
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for range t.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			n, err := sessionsRepo.PruneExpired(ctx, time.Now())
			cancel()
			if err != nil {
				log.Printf("prune sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("🧹 %d sesiones vencidas fuera", n)
			}
		}
	}()

	// Esperar señal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop
}
