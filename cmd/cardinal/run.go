package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cardinal-rs/cardinal/internal/cardinalconfig"
	"github.com/cardinal-rs/cardinal/internal/cardinallog"
	"github.com/cardinal-rs/cardinal/internal/destination"
	"github.com/cardinal-rs/cardinal/internal/dicontainer"
	"github.com/cardinal-rs/cardinal/internal/middleware"
	"github.com/cardinal-rs/cardinal/internal/plugin"
	"github.com/cardinal-rs/cardinal/internal/plugin/builtin"
	"github.com/cardinal-rs/cardinal/internal/proxyloop"
	"github.com/cardinal-rs/cardinal/internal/requestctx"
	"github.com/cardinal-rs/cardinal/internal/wasmengine"
)

func newRunCommand() *cobra.Command {
	var configPaths []string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Cardinal gateway in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configPaths, logLevel)
		},
	}

	cmd.Flags().StringArrayVar(&configPaths, "config", nil, "path to a TOML config file or directory (repeatable)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

// runServer loads configuration, wires every component through the
// dependency container, and blocks serving HTTP until the listener
// fails. The dependency container is used only at startup to build the
// destination index and plugin container, never on the hot path.
func runServer(configPaths []string, logLevel string) error {
	ctx := context.Background()

	logger, err := cardinallog.New(cardinallog.Options{Level: logLevel})
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := cardinalconfig.Load(configPaths)
	if err != nil {
		return err
	}

	di := dicontainer.New()

	dicontainer.Register[*destination.Container](di, dicontainer.Singleton, func(c *dicontainer.Container) (*destination.Container, error) {
		return destination.NewContainer(cfg)
	})

	dicontainer.Register[*wasmengine.Engine](di, dicontainer.Singleton, func(c *dicontainer.Container) (*wasmengine.Engine, error) {
		return wasmengine.NewEngine(ctx, logger)
	})

	dicontainer.Register[*plugin.Container](di, dicontainer.Singleton, func(c *dicontainer.Container) (*plugin.Container, error) {
		engine, err := dicontainer.Get[*wasmengine.Engine](c)
		if err != nil {
			return nil, err
		}
		pc := plugin.NewContainer(logger)
		builtin.RegisterAll(pc)
		if err := pc.Load(ctx, cfg.Plugins, engine); err != nil {
			return nil, err
		}
		return pc, nil
	})

	destinations, err := dicontainer.Get[*destination.Container](di)
	if err != nil {
		return err
	}
	plugins, err := dicontainer.Get[*plugin.Container](di)
	if err != nil {
		return err
	}

	runner := middleware.NewRunner(cfg.Server.GlobalRequestMiddleware, cfg.Server.GlobalResponseMiddleware, plugins)
	proxy := proxyloop.NewServer(destinations, runner, logger, cfg.Server.ForcePathParameter, cfg.Server.LogUpstreamResponse)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: requestctx.Middleware(proxy),
	}

	logger.Info("cardinal listening", zap.String("address", cfg.Server.Address))

	err = server.ListenAndServe()

	if engine, getErr := dicontainer.Get[*wasmengine.Engine](di); getErr == nil {
		_ = engine.Close(ctx)
	}

	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
