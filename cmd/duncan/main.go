package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"duncan/internal/app"
	"duncan/internal/config"
	"duncan/internal/logging"

	"go.uber.org/zap"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("duncan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var testnet bool
	fs.BoolVar(&testnet, "t", false, "use the Hyperliquid testnet")
	fs.BoolVar(&testnet, "testnet", false, "use the Hyperliquid testnet")
	configPath := fs.String("config", "config.yaml", "path to config file (optional)")
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}
	cmdArgs := fs.Args()
	if len(cmdArgs) == 0 {
		usage(fs)
		return 2
	}
	name, rest := cmdArgs[0], cmdArgs[1:]
	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(fs)
		return 2
	}

	if err := config.LoadEnv("", os.Getenv("DUNCAN_ENV")); err != nil {
		fmt.Fprintf(stderr, "failed to load env files: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		writeResult(stdout, nil, err)
		return 0
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	creds, err := config.LoadCredentials()
	if err != nil {
		writeResult(stdout, nil, err)
		return 0
	}
	application, err := app.New(ctx, cfg, creds, log)
	if err != nil {
		writeResult(stdout, nil, err)
		return 0
	}
	defer application.Close()

	if name == "serve" {
		if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("serve terminated", zap.Error(err))
			return 1
		}
		return 0
	}
	result, err := cmd.run(ctx, newOperations(application, testnet), rest)
	writeResult(stdout, result, err)
	return 0
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "duncan %s: manager for perp hedge positions\n\n", version)
	fmt.Fprintln(out, "usage: duncan [-t|--testnet] [--config path] <command> [args]")
	fmt.Fprintln(out, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-32s %s\n", c.usage(), c.help)
	}
	fmt.Fprintln(out, "\nflags:")
	fs.PrintDefaults()
}
