package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/bugdigest/bug-digest/internal/auth"
	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/jobs"
	"github.com/bugdigest/bug-digest/internal/observability"
	"github.com/bugdigest/bug-digest/internal/report"
	"github.com/bugdigest/bug-digest/internal/service"
)

const usage = `bugdigest posts bug digests to chat.

Usage:
  bugdigest [flags] stale   post tasks older than STALE_MIN_AGE_DAYS, oldest first
  bugdigest [flags] top     post the highest scoring open bugs
  bugdigest [flags] serve   run scheduled reports and the trigger API
  bugdigest [flags] token   print a bearer token for the trigger API

Flags:
`

type options struct {
	dryRun   bool
	envFile  string
	logLevel string
	subject  string
	scopes   []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	flagSet := pflag.NewFlagSet("bugdigest", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "print the message instead of publishing it")
	flagSet.StringVar(&opts.envFile, "env-file", "", "load environment from this file instead of .env")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	flagSet.StringVar(&opts.subject, "subject", "operator", "token subject (token command)")
	flagSet.StringSliceVar(&opts.scopes, "scope", auth.AllScopes, "token scopes (token command)")
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return 1
	}
	command := flagSet.Arg(0)
	switch command {
	case "stale", "top", "serve", "token":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		flagSet.Usage()
		return 1
	}

	cfg, err := loadConfig(opts.envFile)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.Logger.Level = opts.logLevel
	}

	if command == "token" {
		return printToken(cfg, opts, stdout, stderr)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config:\n%v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return 1
	}
	defer a.close()

	if command == "serve" {
		if err := serve(ctx, a); err != nil {
			logger.Error("serve failed", zap.Error(err))
			return 1
		}
		return 0
	}

	res, err := a.reports.Run(ctx, report.Kind(command), service.RunOptions{DryRun: opts.dryRun, Trigger: events.TriggerCLI})
	if err != nil {
		return 1
	}
	if opts.dryRun {
		fmt.Fprintln(stdout, res.Message)
	}
	return 0
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.LoadFile(envFile)
	}
	return config.Load()
}

func printToken(cfg *config.Config, opts options, stdout, stderr io.Writer) int {
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(stderr, "AUTH_JWT_SECRET is required to issue tokens")
		return 1
	}
	for _, scope := range opts.scopes {
		if !validScope(scope) {
			fmt.Fprintf(stderr, "unknown scope %q (want one of %s)\n", scope, strings.Join(auth.AllScopes, ", "))
			return 1
		}
	}
	token, expires, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes).GenerateToken(opts.subject, opts.scopes)
	if err != nil {
		fmt.Fprintf(stderr, "failed to issue token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	fmt.Fprintf(stderr, "expires %s\n", expires.UTC().Format(time.RFC3339))
	return 0
}

func validScope(scope string) bool {
	for _, s := range auth.AllScopes {
		if s == scope {
			return true
		}
	}
	return false
}

func serve(ctx context.Context, a *app) error {
	scheduler, err := jobs.NewScheduler(a.cfg.Schedule, a.reports, a.logger, a.cfg.Lock.TTL())
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := a.server()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(a.cfg.App.Addr())
	}()
	a.logger.Info("listening", zap.String("addr", a.cfg.App.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}
	return srv.ShutdownWithTimeout(10 * time.Second)
}
