package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datanaker/skkni-cache/internal/cli"
	"github.com/datanaker/skkni-cache/internal/config"
	"github.com/datanaker/skkni-cache/internal/db"
	"github.com/datanaker/skkni-cache/internal/httpapi"
	"github.com/datanaker/skkni-cache/internal/ingest"
	"github.com/datanaker/skkni-cache/internal/logging"
)

// cacheRefresher adapts the ingest pipeline to the API's refresh hook.
// Seeds take priority; without seeds it walks the first listing pages.
type cacheRefresher struct {
	svc      *ingest.Service
	seeds    []string
	maxPages int
}

func (r *cacheRefresher) Refresh(ctx context.Context) error {
	if len(r.seeds) > 0 {
		_, err := r.svc.SyncSeeds(ctx, r.seeds)
		return err
	}
	_, err := r.svc.SyncPages(ctx, 1, r.maxPages, 20)
	return err
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8080, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	refreshPages := fs.Int("refresh-pages", 5, "Listing pages walked per background refresh")
	noRefresh := fs.Bool("no-refresh", false, "Serve cache only, never touch the upstream source")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	var refresher httpapi.Refresher
	if !*noRefresh {
		seeds, seedErr := resolveSeeds("", "", cfg)
		if seedErr != nil {
			logger.Error().Err(seedErr).Msg("serve failed to resolve seeds")
			fmt.Fprintf(os.Stderr, "Failed to resolve seeds: %v\n", seedErr)
			return 1
		}
		refresher = &cacheRefresher{
			svc:      newIngestService(pool, cfg, logger),
			seeds:    seeds,
			maxPages: *refreshPages,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(pool, refresher, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		APIKey:          cfg.APIKey,
		CORSOrigins:     cfg.CORSAllowedOriginsList(),
		CacheTTLDays:    cfg.CacheTTLDays,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
