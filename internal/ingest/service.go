package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/datanaker/skkni-cache/internal/reconcile"
	"github.com/datanaker/skkni-cache/internal/source"
	payloadschema "github.com/datanaker/skkni-cache/schema"
)

// Fetcher is the slice of the upstream client the pipeline needs.
type Fetcher interface {
	ListDocuments(ctx context.Context, page, limit int) ([]source.ListingRow, error)
	DocumentDetail(ctx context.Context, uuid string) (json.RawMessage, error)
	DownloadURL(uuid string) string
}

// Store is the slice of the cache the pipeline writes through.
type Store interface {
	UpsertDocuments(ctx context.Context, docs []source.Document) (int, error)
	UpsertUnits(ctx context.Context, units []source.Unit) (int, error)
	CachedDocuments(ctx context.Context) ([]source.Document, error)
}

// Report summarizes one sync run.
type Report struct {
	Fetched   int            `json:"fetched"`
	Documents int            `json:"documents"`
	Units     int            `json:"units"`
	Skipped   int            `json:"skipped"`
	Tiers     map[string]int `json:"tiers"`
}

type Service struct {
	Fetcher        Fetcher
	Store          Store
	Enricher       *source.Enricher
	MaxConcurrency int
	Logger         zerolog.Logger
}

func (s *Service) concurrency() int {
	if s.MaxConcurrency < 1 {
		return 1
	}
	return s.MaxConcurrency
}

// SyncSeeds fetches detail payloads for the given document uuids with
// bounded concurrency, normalizes them, and writes the batch through the
// store. A record that fails to fetch or validate is skipped and logged,
// not fatal.
func (s *Service) SyncSeeds(ctx context.Context, uuids []string) (Report, error) {
	report := Report{Tiers: map[string]int{}}
	if s == nil || s.Fetcher == nil || s.Store == nil {
		return report, fmt.Errorf("ingest service is not configured")
	}
	if len(uuids) == 0 {
		return report, nil
	}

	var (
		mu    sync.Mutex
		docs  []source.Document
		units []source.Unit
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency())
	for _, uuid := range uuids {
		uuid := uuid
		group.Go(func() error {
			payload, err := s.Fetcher.DocumentDetail(groupCtx, uuid)
			if err != nil {
				s.Logger.Warn().Err(err).Str("uuid", uuid).Msg("skipping seed: detail fetch failed")
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}
			if err := payloadschema.ValidateDocumentDetail(payload); err != nil {
				s.Logger.Warn().Err(err).Str("uuid", uuid).Msg("skipping seed: payload rejected")
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}

			doc, docUnits, err := source.NormalizeDetail(uuid, payload, s.Fetcher.DownloadURL(uuid), "")
			if err != nil {
				s.Logger.Warn().Err(err).Str("uuid", uuid).Msg("skipping seed: normalize failed")
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.Fetched++
			docs = append(docs, doc)
			units = append(units, docUnits...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, fmt.Errorf("fetch seeds: %w", err)
	}

	return s.finalize(ctx, report, docs, units)
}

// SyncPages walks listing pages fromPage through toPage inclusive,
// normalizes each row, optionally enriches documents whose taxonomy is
// empty, and writes the batch through the store together with any units the
// enrichment detail payloads carried. An empty page ends the walk early.
func (s *Service) SyncPages(ctx context.Context, fromPage, toPage, pageSize int) (Report, error) {
	report := Report{Tiers: map[string]int{}}
	if s == nil || s.Fetcher == nil || s.Store == nil {
		return report, fmt.Errorf("ingest service is not configured")
	}
	if fromPage < 1 {
		fromPage = 1
	}
	if toPage < fromPage {
		toPage = fromPage
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var docs []source.Document
	for page := fromPage; page <= toPage; page++ {
		rows, err := s.Fetcher.ListDocuments(ctx, page, pageSize)
		if err != nil {
			return report, fmt.Errorf("list page %d: %w", page, err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			doc := source.NormalizeListingDocument(row)
			if doc.UUID == "" && doc.DownloadURL == "" {
				s.Logger.Debug().Msg("skipping listing row without identity")
				report.Skipped++
				continue
			}
			report.Fetched++
			docs = append(docs, doc)
		}
	}

	var units []source.Unit
	if s.Enricher != nil {
		enriched, detailUnits := s.Enricher.EnrichDocuments(ctx, docs)
		units = detailUnits
		if enriched > 0 {
			s.Logger.Info().Int("enriched", enriched).Int("units", len(units)).Msg("taxonomy enrichment applied")
		}
	}

	return s.finalize(ctx, report, docs, units)
}

// finalize reconciles the batch against the cached corpus and writes it in
// one store pass. The fresh batch is indexed ahead of cached documents so a
// re-scrape wins ties.
func (s *Service) finalize(ctx context.Context, report Report, docs []source.Document, units []source.Unit) (Report, error) {
	cached, err := s.Store.CachedDocuments(ctx)
	if err != nil {
		return report, fmt.Errorf("load cached corpus: %w", err)
	}

	// A fresh scrape without taxonomy backfills from its cached counterpart
	// before indexing, so a re-scrape never erases what a prior run resolved.
	cachedIndex := reconcile.BuildIndex(cached)
	for i := range docs {
		if !docs[i].Taxonomy().Empty() {
			continue
		}
		probe := source.Unit{
			DocUUID:     docs[i].UUID,
			Number:      docs[i].Number,
			DocTitle:    docs[i].Title,
			DownloadURL: docs[i].DownloadURL,
		}
		if match, _ := cachedIndex.Lookup(probe); match != nil {
			match.Taxonomy().ApplyTo(&docs[i])
		}
	}

	corpus := make([]source.Document, 0, len(docs)+len(cached))
	corpus = append(corpus, docs...)
	corpus = append(corpus, cached...)
	index := reconcile.BuildIndex(corpus)

	tiers := reconcile.MergeUnits(units, index)
	for tier, n := range tiers {
		if tier != "" {
			report.Tiers[tier] += n
		}
	}

	written, err := s.Store.UpsertDocuments(ctx, docs)
	if err != nil {
		return report, err
	}
	report.Documents = written

	writtenUnits, err := s.Store.UpsertUnits(ctx, units)
	if err != nil {
		return report, err
	}
	report.Units = writtenUnits

	s.Logger.Info().
		Int("fetched", report.Fetched).
		Int("documents", report.Documents).
		Int("units", report.Units).
		Int("skipped", report.Skipped).
		Msg("sync batch committed")
	return report, nil
}
