package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jaxxstorm/atlastodo/internal/diagnose"
	"github.com/jaxxstorm/atlastodo/internal/dnsclient"
	"github.com/jaxxstorm/atlastodo/internal/mongocheck"
	"github.com/jaxxstorm/atlastodo/internal/probe"
	"github.com/jaxxstorm/atlastodo/internal/resolver"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var Version = "dev"

const usage = `Usage: atlasdiag <cluster-host>
Example: atlasdiag cluster0.abcde.mongodb.net
A host literally named "ping" or "version" must be given as: atlasdiag dns <cluster-host>`

type CLI struct {
	DNS     DNSCmd     `cmd:"" name:"dns" default:"withargs" help:"Resolve SRV members of a MongoDB cluster and probe them over TCP (default)."`
	Ping    PingCmd    `cmd:"ping" help:"Connect to MONGODB_URI and run read/write sanity checks."`
	Version VersionCmd `cmd:"version" help:"Print version."`
}

type DNSCmd struct {
	ClusterHost string `arg:"" name:"cluster-host" help:"Cluster hostname, e.g. cluster0.abcde.mongodb.net."`
}

type PingCmd struct {
	URI      string        `name:"uri" env:"MONGODB_URI" help:"MongoDB connection string."`
	Insecure bool          `help:"Skip TLS certificate validation (debug only)."`
	Timeout  time.Duration `default:"5s" help:"Server selection timeout."`
	Verbose  bool          `help:"Enable verbose logging."`
	Debug    bool          `help:"Enable debug logging."`
}

type VersionCmd struct{}

func main() {
	// .env.local is optional; values already in the environment win.
	_ = godotenv.Load(".env.local")
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parse(args []string, stdout, stderr io.Writer) (*CLI, string, error) {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("atlasdiag"),
		kong.Description("Diagnose DNS, TCP and driver connectivity to a MongoDB cluster."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return nil, "", err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return nil, "", err
	}
	return cli, ctx.Selected().Name, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	cli, command, err := parse(args, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, usage)
		return 1
	}

	switch command {
	case "version":
		fmt.Fprintln(stdout, Version)
		return 0
	case "ping":
		logger, err := newLogger(cli.Ping.Verbose, cli.Ping.Debug)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return runPing(cli.Ping, logger, stdout, stderr)
	default:
		logger, err := newLogger(false, false)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return runDNS(cli.DNS, logger, stdout, stderr)
	}
}

func runDNS(cmd DNSCmd, logger *zap.Logger, stdout, stderr io.Writer) int {
	client := dnsclient.New(dnsclient.Options{
		Mode:      dnsclient.ModeAuto,
		Timeout:   probe.DefaultTimeout,
		Recursive: true,
		Logger:    logger,
	})
	res := resolver.New(client, resolver.Config{Logger: logger})
	orchestrator := diagnose.New(res, probe.New(logger), diagnose.Config{
		ProbeTimeout: probe.DefaultTimeout,
		Logger:       logger,
	})

	if _, err := orchestrator.Run(context.Background(), cmd.ClusterHost, stdout); err != nil {
		fmt.Fprintln(stderr, "Fatal error during debug:", err)
		return 1
	}
	return 0
}

func runPing(cmd PingCmd, logger *zap.Logger, stdout, stderr io.Writer) int {
	if cmd.URI == "" {
		fmt.Fprintln(stderr, "MONGODB_URI not set. Put MONGODB_URI in .env.local (no quotes) or pass --uri.")
		return 1
	}

	_, err := mongocheck.Run(context.Background(), mongocheck.Options{
		URI:      cmd.URI,
		Insecure: cmd.Insecure,
		Timeout:  cmd.Timeout,
		Logger:   logger,
	}, stdout)
	if err != nil {
		fmt.Fprintln(stderr, "Connection test failed:", err)
		if mongocheck.IsServerSelection(err) {
			fmt.Fprintln(stderr, "\nPossible causes:")
			for _, hint := range mongocheck.ServerSelectionHints {
				fmt.Fprintln(stderr, " - "+hint)
			}
		}
		return 2
	}
	fmt.Fprintln(stdout, "Disconnected. All checks passed.")
	return 0
}

func newLogger(verbose bool, debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
