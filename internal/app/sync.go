package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/datanaker/skkni-cache/internal/cli"
	"github.com/datanaker/skkni-cache/internal/config"
	"github.com/datanaker/skkni-cache/internal/db"
	"github.com/datanaker/skkni-cache/internal/ingest"
	"github.com/datanaker/skkni-cache/internal/logging"
	"github.com/datanaker/skkni-cache/internal/source"
)

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	seeds := fs.String("seeds", "", "Comma-separated document uuids to fetch")
	seedFile := fs.String("seed-file", "", "File with one document uuid per line")
	fromPage := fs.Int("from-page", 0, "First listing page to walk (0 disables the page walk)")
	toPage := fs.Int("to-page", 0, "Last listing page to walk")
	pageSize := fs.Int("page-size", 20, "Listing page size")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "sync does not accept positional arguments")
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

	seedList, err := resolveSeeds(*seeds, *seedFile, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve seeds: %v\n", err)
		return 1
	}
	if len(seedList) == 0 && *fromPage <= 0 {
		fmt.Fprintln(os.Stderr, "nothing to sync: give --seeds, --seed-file, SEED_UUIDS, or --from-page")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("sync failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc := newIngestService(pool, cfg, logger)

	combined := ingest.Report{Tiers: map[string]int{}}
	if len(seedList) > 0 {
		report, err := svc.SyncSeeds(ctx, seedList)
		if err != nil {
			logger.Error().Err(err).Msg("seed sync failed")
			fmt.Fprintf(os.Stderr, "Seed sync failed: %v\n", err)
			return 1
		}
		mergeReport(&combined, report)
	}
	if *fromPage > 0 {
		report, err := svc.SyncPages(ctx, *fromPage, *toPage, *pageSize)
		if err != nil {
			logger.Error().Err(err).Msg("page sync failed")
			fmt.Fprintf(os.Stderr, "Page sync failed: %v\n", err)
			return 1
		}
		mergeReport(&combined, report)
	}

	encoded, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode report: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))
	return 0
}

func newIngestService(pool *db.Pool, cfg *config.Config, logger zerolog.Logger) *ingest.Service {
	client := source.NewClient(cfg.APIBase, time.Duration(cfg.FetchTimeoutSeconds)*time.Second, logger)
	enricher := &source.Enricher{
		API:    client,
		Limit:  cfg.EnrichLimit,
		Logger: logger,
	}
	return &ingest.Service{
		Fetcher:        client,
		Store:          pool,
		Enricher:       enricher,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	}
}

// resolveSeeds merges the flag, the seed file, and the environment, keeping
// first-seen order and dropping duplicates.
func resolveSeeds(flagSeeds, flagFile string, cfg *config.Config) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	add := func(uuid string) {
		uuid = strings.TrimSpace(uuid)
		if uuid == "" {
			return
		}
		if _, dup := seen[uuid]; dup {
			return
		}
		seen[uuid] = struct{}{}
		out = append(out, uuid)
	}

	for _, uuid := range strings.Split(flagSeeds, ",") {
		add(uuid)
	}
	for _, uuid := range cfg.SeedUUIDList() {
		add(uuid)
	}

	path := strings.TrimSpace(flagFile)
	if path == "" {
		path = strings.TrimSpace(cfg.SeedFile)
	}
	if path != "" {
		uuids, err := readSeedFile(path)
		if err != nil {
			return nil, err
		}
		for _, uuid := range uuids {
			add(uuid)
		}
	}
	return out, nil
}

func readSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}

func mergeReport(dst *ingest.Report, src ingest.Report) {
	dst.Fetched += src.Fetched
	dst.Documents += src.Documents
	dst.Units += src.Units
	dst.Skipped += src.Skipped
	for tier, n := range src.Tiers {
		dst.Tiers[tier] += n
	}
}
