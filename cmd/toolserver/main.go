// Command toolserver serves the tool catalog and invocation routes.
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

	"github.com/wilhg/toolwire/examples/geometry"
	"github.com/wilhg/toolwire/pkg/config"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/mcpserver"
	"github.com/wilhg/toolwire/pkg/metrics"
	otto "github.com/wilhg/toolwire/pkg/otel"
	"github.com/wilhg/toolwire/pkg/store"
	"github.com/wilhg/toolwire/pkg/store/sqlstore"
	"github.com/wilhg/toolwire/pkg/tool"
	"github.com/wilhg/toolwire/pkg/tool/arith"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "toolserver: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("toolserver", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	addr := fs.String("addr", "", "http listen address (overrides TOOLWIRE_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "toolserver %s (commit=%s, date=%s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	shutdown, err := otto.Init(ctx, otto.Config{ServiceName: "toolserver", ServiceVersion: version, UseStdout: cfg.App.OTelStdout, SampleRatio: &cfg.App.OTelSampleRatio})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	srv, cleanup, err := buildServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := srv.Serve(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildServer wires the registry, optional journal, metrics and routes.
func buildServer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*mcpserver.Server, func(), error) {
	reg := tool.NewRegistry(tool.WithLogger(log))
	var opts []arith.Option
	if cfg.Server.LegacySubstract {
		opts = append(opts, arith.WithLegacyAlias())
	}
	if err := arith.Register(reg, opts...); err != nil {
		return nil, nil, err
	}
	if cfg.Server.GeometryTools {
		if err := geometry.Register(reg); err != nil {
			return nil, nil, err
		}
	}

	m := metrics.New(true)
	dopts := []tool.DispatcherOption{tool.WithObserver(m), tool.WithDispatchLogger(log)}
	cleanup := func() {}
	if cfg.Server.DatabaseURL != "" {
		st, err := sqlstore.Open(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
		dopts = append(dopts, tool.WithObserver(store.NewObserver(st, log)))
		cleanup = func() { _ = st.Close() }
		log.Infow("invocation journal enabled", "dialect", st.Dialect())
	}

	srv, err := mcpserver.New(tool.NewDispatcher(reg, dopts...), mcpserver.Config{
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MCPBridge:       cfg.Server.MCPBridge,
		Version:         version,
	}, mcpserver.WithLogger(log), mcpserver.WithMetrics(m))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Infow("catalog ready", "tools", reg.Names())
	return srv, cleanup, nil
}
