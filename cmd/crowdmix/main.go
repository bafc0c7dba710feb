// Command crowdmix runs the crowd set-curation server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlowery/go-crowdmix/internal/auth"
	"github.com/mlowery/go-crowdmix/internal/curator"
	"github.com/mlowery/go-crowdmix/internal/db"
	"github.com/mlowery/go-crowdmix/internal/spotify"
	"github.com/mlowery/go-crowdmix/internal/web"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

// config holds process configuration read from the environment.
type config struct {
	addr         string
	redirectURL  string
	clientID     string
	clientSecret string
	databaseURL  string
}

func loadConfig() (config, error) {
	cfg := config{
		addr:         os.Getenv("CROWDMIX_ADDR"),
		redirectURL:  os.Getenv("CROWDMIX_REDIRECT_URL"),
		clientID:     os.Getenv("SPOTIFY_ID"),
		clientSecret: os.Getenv("SPOTIFY_SECRET"),
		databaseURL:  os.Getenv("DATABASE_URL"),
	}
	if cfg.clientID == "" || cfg.clientSecret == "" {
		return cfg, fmt.Errorf("please set SPOTIFY_ID and SPOTIFY_SECRET environment variables")
	}
	if cfg.databaseURL == "" {
		return cfg, fmt.Errorf("please set the DATABASE_URL environment variable")
	}
	if cfg.addr == "" {
		cfg.addr = web.DefaultAddr
	}
	if cfg.redirectURL == "" {
		cfg.redirectURL = fmt.Sprintf("http://%s/callback", cfg.addr)
	}
	return cfg, nil
}

func run(log zerolog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	database, err := db.New(ctx, cfg.databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	authenticator, err := auth.New(auth.Config{
		ClientID:     cfg.clientID,
		ClientSecret: cfg.clientSecret,
		RedirectURL:  cfg.redirectURL,
	})
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	metadata, err := catalogClient(ctx, authenticator, log)
	if err != nil {
		return fmt.Errorf("creating catalog client: %w", err)
	}

	svc := curator.New(
		database.Records(),
		database.Queue(),
		metadata,
		curator.WithLogger(log.With().Str("component", "curator").Logger()),
	)

	server, err := web.NewServer(web.ServerConfig{
		Addr:          cfg.addr,
		Authenticator: authenticator,
		Database:      database,
		Curator:       svc,
		Logger:        log.With().Str("component", "web").Logger(),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// catalogClient builds the metadata client for the curator. A cached
// login token is preferred; otherwise the client-credentials flow is
// used, which covers all catalog endpoints the curator needs.
func catalogClient(ctx context.Context, authenticator *auth.Authenticator, log zerolog.Logger) (*spotify.Client, error) {
	if cached, err := authenticator.CachedClient(ctx); err == nil && cached != nil {
		log.Info().Msg("using cached login token for catalog access")
		return spotify.New(cached), nil
	}

	app, err := authenticator.AppClient(ctx)
	if err != nil {
		return nil, err
	}
	return spotify.New(app), nil
}
