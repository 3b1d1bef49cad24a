package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroom/holdemd/internal/auth"
	"github.com/cardroom/holdemd/internal/deck"
	"github.com/cardroom/holdemd/internal/server"
	"github.com/cardroom/holdemd/internal/store"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" default:"withargs" help:"Run the poker server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("holdemd"),
		kong.Description("Server-authoritative no-limit hold'em cardroom"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// ServeCmd runs the server from an HCL config file.
type ServeCmd struct {
	Config string `kong:"default='holdemd.hcl',help='Path to the HCL config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.Load(c.Config)
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           logLevel(cfg.Server.LogLevel, c.Debug),
	})

	db, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	authSvc := auth.NewService(auth.Config{
		ChallengeTTL: cfg.ChallengeTTL(),
		SessionTTL:   cfg.SessionTTL(),
	}, db, auth.VerifierFunc(verifySignedEvent), logger)

	coord := server.NewCoordinator(cfg, authSvc, db, db,
		deck.CryptoSource{}, quartz.NewReal(), nil, logger)

	srv := server.New(cfg, coord, authSvc, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting holdemd",
		"version", version,
		"config", c.Config,
		"tables", len(cfg.Tables),
		"db", cfg.Server.DBPath)

	return srv.Run(ctx)
}

func logLevel(configured string, debug bool) log.Level {
	if debug {
		return log.DebugLevel
	}
	switch configured {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// verifySignedEvent is the structural check on auth events. Deployments
// that bind identities to a concrete key scheme replace this with a
// verifier for that scheme.
func verifySignedEvent(ev *auth.SignedEvent) error {
	if ev.Sig == "" {
		return errors.New("missing signature")
	}
	return nil
}
