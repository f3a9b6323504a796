package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/FatmaElik/risk-map/internal/export"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/server"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve joined risk data over a JSON API",
	Long: `Serve loads the default year's snapshot and exposes it, together with class
breaks, bounding boxes and viewport fits, over a JSON API.

With --archive the snapshots are read from a SQLite archive written by
"riskmap build --format sqlite" instead of the data source.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().StringSlice("cors-origins", nil, "Allowed CORS origins (default: any)")
	serveCmd.Flags().Int("default-year", 2025, "Year loaded at startup")
	serveCmd.Flags().Float64("padding", 0, "Viewport fit padding in pixels (default 40)")
	serveCmd.Flags().String("archive", "", "Serve snapshots from a SQLite archive instead of the data source")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the resource mirror (host:port)")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")

	mustBind(serveCmd, "serve.addr", "addr")
	mustBind(serveCmd, "serve.cors_origins", "cors-origins")
	mustBind(serveCmd, "serve.default_year", "default-year")
	mustBind(serveCmd, "serve.padding", "padding")
	mustBind(serveCmd, "serve.archive", "archive")
	mustBind(serveCmd, "cache.redis_addr", "redis-addr")
	mustBind(serveCmd, "serve.shutdown_timeout", "shutdown-timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := viper.GetViper()
	year := v.GetInt("serve.default_year")

	var (
		builder   pipeline.SnapshotBuilder
		apiLoader server.Loader
	)
	if path := v.GetString("serve.archive"); path != "" {
		reader, err := export.OpenSQLiteReader(path)
		if err != nil {
			return err
		}
		defer reader.Close()

		years, err := reader.Years()
		if err != nil {
			return err
		}
		if len(years) == 0 {
			return eris.Errorf("archive %s holds no snapshots", path)
		}
		if !slices.Contains(years, year) {
			logger.Warn("default year not archived, using latest", "year", year, "latest", years[len(years)-1])
			year = years[len(years)-1]
		}
		builder = reader
		logger.Info("serving archive", "path", path, "years", years)
	} else {
		loader, closeMirror, err := newLoader(ctx, v)
		if err != nil {
			return err
		}
		defer closeMirror()

		b, err := newBuilder(v, loader)
		if err != nil {
			return err
		}
		builder = b
		apiLoader = loader
		logger.Info("serving data source", "source", v.GetString("data.source"), "base_path", v.GetString("data.base_path"))
	}

	session := pipeline.NewSession(builder, logger)
	if _, err := session.Load(ctx, year); err != nil {
		// The API answers 503 until a later PUT /api/year succeeds.
		logger.Warn("initial load failed", "year", year, "error", err)
	}

	api := server.New(session, apiLoader, server.Config{
		CORSOrigins: v.GetStringSlice("serve.cors_origins"),
		Classes:     v.GetInt("classify.classes"),
		Padding:     v.GetFloat64("serve.padding"),
		Logger:      logger,
	})

	addr := v.GetString("serve.addr")
	srv := &http.Server{Addr: addr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", addr, "year", year)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("serve.shutdown_timeout"))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
