package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/datanaker/skkni-cache/internal/source"
)

type fakeFetcher struct {
	details map[string]json.RawMessage
	pages   map[int][]source.ListingRow
}

func (f *fakeFetcher) ListDocuments(_ context.Context, page, _ int) ([]source.ListingRow, error) {
	return f.pages[page], nil
}

func (f *fakeFetcher) DocumentDetail(_ context.Context, uuid string) (json.RawMessage, error) {
	payload, ok := f.details[uuid]
	if !ok {
		return nil, fmt.Errorf("no detail for %s", uuid)
	}
	return payload, nil
}

func (f *fakeFetcher) DownloadURL(uuid string) string {
	return "https://api.example/v1/public/documents/" + uuid + "/download"
}

type fakeStore struct {
	cached []source.Document
	docs   []source.Document
	units  []source.Unit
}

func (s *fakeStore) UpsertDocuments(_ context.Context, docs []source.Document) (int, error) {
	s.docs = append(s.docs, docs...)
	return len(docs), nil
}

func (s *fakeStore) UpsertUnits(_ context.Context, units []source.Unit) (int, error) {
	s.units = append(s.units, units...)
	return len(units), nil
}

func (s *fakeStore) CachedDocuments(_ context.Context) ([]source.Document, error) {
	return s.cached, nil
}

func TestSyncSeedsSkipsBadPayloads(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{details: map[string]json.RawMessage{
		"doc-a": json.RawMessage(`{"data":{"uuid":"doc-a","name":"SKKNI Industri Semen","year":2020}}`),
		"doc-b": json.RawMessage(`not json`),
	}}
	store := &fakeStore{}
	svc := &Service{Fetcher: fetcher, Store: store, MaxConcurrency: 2, Logger: zerolog.Nop()}

	report, err := svc.SyncSeeds(context.Background(), []string{"doc-a", "doc-b", "doc-missing"})
	if err != nil {
		t.Fatalf("SyncSeeds() error = %v", err)
	}
	if report.Fetched != 1 {
		t.Fatalf("Fetched = %d, want 1", report.Fetched)
	}
	if report.Skipped != 2 {
		t.Fatalf("Skipped = %d, want 2", report.Skipped)
	}
	if report.Documents != 1 {
		t.Fatalf("Documents = %d, want 1", report.Documents)
	}
	if len(store.docs) != 1 || store.docs[0].Title != "SKKNI Industri Semen" {
		t.Fatalf("stored docs = %+v", store.docs)
	}
}

func TestSyncSeedsReconcilesUnitsAgainstCachedCorpus(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"data": {
			"uuid": "doc-a",
			"name": "SKKNI Nomor 166 Tahun 2025",
			"units": [
				{"code": "A.01", "name": "Mengoperasikan Tanur"}
			]
		}
	}`)
	fetcher := &fakeFetcher{details: map[string]json.RawMessage{"doc-a": payload}}
	store := &fakeStore{cached: []source.Document{
		{UUID: "doc-a", Title: "SKKNI Nomor 166 Tahun 2025", Sector: "Manufacturing", Field: "Semen"},
	}}
	svc := &Service{Fetcher: fetcher, Store: store, MaxConcurrency: 1, Logger: zerolog.Nop()}

	report, err := svc.SyncSeeds(context.Background(), []string{"doc-a"})
	if err != nil {
		t.Fatalf("SyncSeeds() error = %v", err)
	}
	if report.Units != 1 {
		t.Fatalf("Units = %d, want 1", report.Units)
	}
	if len(store.units) != 1 {
		t.Fatalf("stored %d units, want 1", len(store.units))
	}
	unit := store.units[0]
	if unit.Sector != "Manufacturing" || unit.Field != "Semen" {
		t.Fatalf("unit taxonomy = %q/%q, want merged from cached corpus", unit.Sector, unit.Field)
	}
	if report.Tiers["canonical_id"] != 1 {
		t.Fatalf("tier counts = %v, want one canonical_id merge", report.Tiers)
	}
}

func TestSyncPagesPersistsEnrichmentUnits(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[int][]source.ListingRow{
			1: {{"uuid": "doc-a", "judul_skkni": "SKKNI Perbankan"}},
		},
		details: map[string]json.RawMessage{
			"doc-a": json.RawMessage(`{"data":{"core_category":{"name":"Perbankan","category":{"name":"Jasa Keuangan"}},"units":[{"code":"K.64PRB00.001.1","title":"Melakukan Analisis Kredit"}]}}`),
		},
	}
	store := &fakeStore{}
	svc := &Service{
		Fetcher:        fetcher,
		Store:          store,
		Enricher:       &source.Enricher{API: fetcher, Limit: 5, Logger: zerolog.Nop()},
		MaxConcurrency: 1,
		Logger:         zerolog.Nop(),
	}

	report, err := svc.SyncPages(context.Background(), 1, 1, 20)
	if err != nil {
		t.Fatalf("SyncPages() error = %v", err)
	}
	if report.Units != 1 {
		t.Fatalf("Units = %d, want 1", report.Units)
	}
	if len(store.units) != 1 {
		t.Fatalf("stored %d units, want 1", len(store.units))
	}
	unit := store.units[0]
	if unit.DocUUID != "doc-a" || unit.Code != "K.64PRB00.001.1" {
		t.Fatalf("stored unit = %+v", unit)
	}
	if unit.Sector != "Jasa Keuangan" {
		t.Fatalf("unit sector = %q, want taxonomy from the detail payload", unit.Sector)
	}
}

func TestSyncPagesStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[int][]source.ListingRow{
		1: {
			{"uuid": "doc-a", "judul_skkni": "Judul A"},
			{"judul_skkni": "Tanpa Identitas"},
		},
		2: {},
		3: {
			{"uuid": "doc-z", "judul_skkni": "Tidak Terjangkau"},
		},
	}}
	store := &fakeStore{}
	svc := &Service{Fetcher: fetcher, Store: store, MaxConcurrency: 1, Logger: zerolog.Nop()}

	report, err := svc.SyncPages(context.Background(), 1, 3, 20)
	if err != nil {
		t.Fatalf("SyncPages() error = %v", err)
	}
	if report.Fetched != 1 {
		t.Fatalf("Fetched = %d, want 1", report.Fetched)
	}
	if report.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", report.Skipped)
	}
	if len(store.docs) != 1 || store.docs[0].UUID != "doc-a" {
		t.Fatalf("stored docs = %+v, want only doc-a", store.docs)
	}
}
