package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/jaywantadh/querybyte/config"
	"github.com/jaywantadh/querybyte/internal/transfer"
	"github.com/jaywantadh/querybyte/pkg/env"
	"github.com/jaywantadh/querybyte/pkg/logging"
)

func main() {
	env.Load()

	app := &cli.App{
		Name:  "querybyte",
		Usage: "Send files to a querybyte server through HTTP GET query strings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory searched for config.yaml, or a direct path to it",
				Value:   env.Get("QUERYBYTE_CONFIG", "."),
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL (overrides config)",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Transfer profile: default or low-bandwidth (overrides config)",
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Attempts per chunk (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Verbose logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Aliases:   []string{"u"},
				Usage:     "Upload one or more files",
				ArgsUsage: "FILE [FILE...] [SERVER_URL]",
				Action:    runUpload,
			},
			{
				Name:      "status",
				Usage:     "Show the server's active upload sessions",
				ArgsUsage: "[SERVER_URL]",
				Action:    runStatus,
			},
			{
				Name:      "test",
				Usage:     "Send a small generated payload to verify connectivity",
				ArgsUsage: "[SERVER_URL]",
				Action:    runTest,
			},
		},
		// Bare file arguments upload, so `querybyte report.pdf` works.
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return cli.ShowAppHelp(c)
			}
			return runUpload(c)
		},
	}

	if err := app.Run(rewriteLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// rewriteLegacyArgs maps the old flag-style invocations (--status,
// --test) onto their subcommands.
func rewriteLegacyArgs(args []string) []string {
	if len(args) < 2 {
		return args
	}
	switch args[1] {
	case "--status":
		return append([]string{args[0], "status"}, args[2:]...)
	case "--test":
		return append([]string{args[0], "test"}, args[2:]...)
	}
	return args
}

// newCLILogger keeps terminal output clean unless asked for more: the
// reporter prints progress, logrus only speaks up for warnings.
func newCLILogger(debug bool) *logrus.Logger {
	if debug {
		return logging.New(true)
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log
}

// isServerURL reports whether a positional argument names the server
// rather than a file.
func isServerURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

func buildSender(c *cli.Context, serverArg string, log *logrus.Logger, progress func(transfer.Progress)) (*transfer.Sender, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("server"); v != "" {
		cfg.ServerURL = v
	}
	if serverArg != "" {
		cfg.ServerURL = serverArg
	}
	if v := c.String("profile"); v != "" {
		cfg.Profile = v
	}
	if c.IsSet("retries") {
		cfg.MaxRetries = c.Int("retries")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := transfer.ProfileByName(cfg.Profile)
	if err != nil {
		return nil, err
	}

	return transfer.NewSender(transfer.SenderConfig{
		ServerURL:  cfg.ServerURL,
		Profile:    profile,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     log,
		Progress:   progress,
	}), nil
}

func runUpload(c *cli.Context) error {
	paths := c.Args().Slice()
	server := ""
	if n := len(paths); n > 1 && isServerURL(paths[n-1]) {
		server = paths[n-1]
		paths = paths[:n-1]
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files to upload")
	}

	log := newCLILogger(c.Bool("debug"))
	var reporter *transfer.Reporter
	sender, err := buildSender(c, server, log, func(p transfer.Progress) { reporter.Update(p) })
	if err != nil {
		return err
	}

	if err := sender.Ping(); err != nil {
		return fmt.Errorf("server %s is not reachable: %v", sender.ServerURL(), err)
	}
	fmt.Printf("🔍 Server %s is up\n", sender.ServerURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, path := range paths {
		reporter = transfer.NewReporter(time.Second)
		res, err := sender.Upload(ctx, path)
		if res != nil && res.Attempts > 0 {
			reporter.Summary(res)
		}
		if err != nil {
			return fmt.Errorf("upload of %s failed: %v", path, err)
		}
		fmt.Printf("✅ Uploaded %s\n", res.Filename)
	}
	return nil
}

func runStatus(c *cli.Context) error {
	sender, err := buildSender(c, c.Args().First(), newCLILogger(c.Bool("debug")), nil)
	if err != nil {
		return err
	}

	status, err := sender.ServerStatus()
	if err != nil {
		return err
	}

	fmt.Printf("✅ Server %s is %s (up %s)\n", sender.ServerURL(), status.Status, status.Uptime)
	if len(status.UploadedFiles) == 0 {
		fmt.Println("No completed uploads")
	} else {
		fmt.Printf("\n=== Completed Uploads (%d) ===\n", len(status.UploadedFiles))
		for _, name := range status.UploadedFiles {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(status.Sessions) == 0 {
		fmt.Println("No uploads in flight")
		return nil
	}
	fmt.Printf("\n=== Active Uploads (%d) ===\n", len(status.Sessions))
	for _, s := range status.Sessions {
		fmt.Printf("  %s: next chunk %d/%d, %d bytes received, started %s (session %s)\n",
			s.Filename, s.NextChunk, s.Total, s.Received, s.StartedAt.Format("15:04:05"), s.ID)
	}
	return nil
}

func runTest(c *cli.Context) error {
	sender, err := buildSender(c, c.Args().First(), newCLILogger(c.Bool("debug")), nil)
	if err != nil {
		return err
	}

	if err := sender.Ping(); err != nil {
		return fmt.Errorf("server %s is not reachable: %v", sender.ServerURL(), err)
	}

	payload := []byte(fmt.Sprintf("querybyte test payload generated at %s\n", time.Now().Format(time.RFC3339)))
	path := filepath.Join(os.TempDir(), "querybyte_test.txt")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write test file: %v", err)
	}
	defer os.Remove(path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := sender.Upload(ctx, path)
	if err != nil {
		return fmt.Errorf("test upload failed: %v", err)
	}
	fmt.Printf("✅ Test upload OK: %d chunk(s) in %d attempt(s)\n", res.ChunksSent, res.Attempts)
	return nil
}
