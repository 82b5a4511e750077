package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jaywantadh/querybyte/config"
	"github.com/jaywantadh/querybyte/internal/registry"
	"github.com/jaywantadh/querybyte/internal/storage"
	"github.com/jaywantadh/querybyte/internal/transfer"
	"github.com/jaywantadh/querybyte/pkg/env"
	"github.com/jaywantadh/querybyte/pkg/logging"
)

func main() {
	env.Load()

	app := &cli.App{
		Name:  "querybyte-server",
		Usage: "Receive chunked uploads sent through HTTP GET query strings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory searched for config.yaml, or a direct path to it",
				Value:   env.Get("QUERYBYTE_CONFIG", "."),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides config)",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Transfer profile: default or low-bandwidth (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Verbose logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Start the upload server",
				Action:  runServe,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List completed uploads",
				Action:  runList,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if v := c.String("profile"); v != "" {
		cfg.Profile = v
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Debug)

	profile, err := transfer.ProfileByName(cfg.Profile)
	if err != nil {
		return err
	}

	store, err := storage.NewLocalStore(cfg.StoragePath)
	if err != nil {
		return err
	}
	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	reassembler := transfer.NewReassembler(transfer.ReassemblerConfig{
		Store:      store,
		Registry:   reg,
		Profile:    profile.Name,
		SessionTTL: cfg.SessionTTL,
		Logger:     log,
	})
	defer reassembler.Close()

	srv := transfer.NewServer(transfer.ServerConfig{
		Port:     cfg.Port,
		Profile:  profile,
		Receiver: reassembler,
		Logger:   log,
	})

	log.Infof("📊 Storing uploads in %s, registry in %s", cfg.StoragePath, cfg.RegistryPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %v", err)
	}
	return <-errCh
}

func runList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	records, err := reg.List()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No uploads recorded")
		return nil
	}

	fmt.Printf("=== Completed Uploads (%d) ===\n", len(records))
	for _, rec := range records {
		fmt.Printf("  %s: %d bytes in %d chunk(s), profile %s, completed %s\n",
			rec.Filename, rec.Size, rec.Chunks, rec.Profile, rec.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
