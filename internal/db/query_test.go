package db

import (
	"context"
	"testing"

	"github.com/datanaker/skkni-cache/internal/source"
)

func TestSearchDocumentsCaseInsensitiveQuery(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	docs := []source.Document{
		{UUID: "doc-a", Title: "SKKNI Industri Semen", Year: "2020"},
		{UUID: "doc-b", Title: "SKKNI Pengolahan Susu", Year: "2021"},
	}
	if _, err := pool.UpsertDocuments(ctx, docs); err != nil {
		t.Fatalf("UpsertDocuments() error = %v", err)
	}

	rows, total, err := pool.SearchDocuments(ctx, DocumentFilter{Query: "SEMEN"})
	if err != nil {
		t.Fatalf("SearchDocuments() error = %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("got total=%d len=%d, want 1/1", total, len(rows))
	}
	if rows[0].UUID != "doc-a" {
		t.Fatalf("got %q, want doc-a", rows[0].UUID)
	}
}

func TestSearchDocumentsExactFilters(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	docs := []source.Document{
		{UUID: "doc-a", Title: "A", Sector: "Manufaktur", Year: "2020"},
		{UUID: "doc-b", Title: "B", Sector: "Pertanian", Year: "2020"},
		{UUID: "doc-c", Title: "C", Sector: "Manufaktur", Year: "2021"},
	}
	if _, err := pool.UpsertDocuments(ctx, docs); err != nil {
		t.Fatalf("UpsertDocuments() error = %v", err)
	}

	rows, total, err := pool.SearchDocuments(ctx, DocumentFilter{Sector: "manufaktur", Year: "2020"})
	if err != nil {
		t.Fatalf("SearchDocuments() error = %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].UUID != "doc-a" {
		t.Fatalf("got total=%d rows=%+v, want only doc-a", total, rows)
	}
}

// A document with an empty taxonomy snapshot reconciles against its sibling
// before ingest, so every unit filtered by the resolved sector id comes back
// even when its parent listing row had no taxonomy.
func TestSectorIDFilterCoversReconciledUnits(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	docs := []source.Document{
		{UUID: "doc-a", Title: "Dokumen Manufaktur", Sector: "Manufacturing"},
		{UUID: "doc-b", Title: "Dokumen Tanpa Sektor"},
	}
	if _, err := pool.UpsertDocuments(ctx, docs); err != nil {
		t.Fatalf("UpsertDocuments() error = %v", err)
	}

	units := []source.Unit{
		{DocUUID: "doc-a", Code: "A.01", Title: "Unit Satu", Sector: "Manufacturing"},
		{DocUUID: "doc-a", Code: "A.02", Title: "Unit Dua", Sector: "Manufacturing"},
		{DocUUID: "doc-b", Code: "B.01", Title: "Unit Tiga", Sector: "Manufacturing"},
	}
	if _, err := pool.UpsertUnits(ctx, units); err != nil {
		t.Fatalf("UpsertUnits() error = %v", err)
	}

	sectors, _, err := pool.ListSectors(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListSectors() error = %v", err)
	}
	if len(sectors) != 1 {
		t.Fatalf("got %d sectors, want 1", len(sectors))
	}

	rows, total, err := pool.SearchUnits(ctx, UnitFilter{SectorID: sectors[0].ID})
	if err != nil {
		t.Fatalf("SearchUnits() error = %v", err)
	}
	if total != 3 {
		t.Fatalf("got %d units for sector id filter, want 3", total)
	}
	for _, r := range rows {
		if r.Sector != "Manufacturing" {
			t.Fatalf("unit %s sector = %q, want Manufacturing", r.Code, r.Sector)
		}
	}
}

// Rows ingested before taxonomy links existed have no link row. The id
// filter still matches them through the snapshot name.
func TestSectorIDFilterFallsBackToSnapshotName(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	seed := source.Document{UUID: "doc-a", Title: "A", Sector: "Manufacturing"}
	if _, err := pool.UpsertDocuments(ctx, []source.Document{seed}); err != nil {
		t.Fatalf("UpsertDocuments() error = %v", err)
	}

	legacy := Unit{DocUUID: "doc-old", Code: "X.01", Title: "Unit Lama", Sector: "manufacturing"}
	if err := pool.GORM().WithContext(ctx).Create(&legacy).Error; err != nil {
		t.Fatalf("create legacy unit: %v", err)
	}

	sectors, _, err := pool.ListSectors(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListSectors() error = %v", err)
	}

	_, total, err := pool.SearchUnits(ctx, UnitFilter{SectorID: sectors[0].ID})
	if err != nil {
		t.Fatalf("SearchUnits() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("got %d units, want legacy unit matched by snapshot name", total)
	}
}

func TestSearchUnitsFreeTextAndDocFilter(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	units := []source.Unit{
		{DocUUID: "doc-a", Code: "A.01", Title: "Mengoperasikan Tanur Semen"},
		{DocUUID: "doc-a", Code: "A.02", Title: "Merawat Mesin"},
		{DocUUID: "doc-b", Code: "B.01", Title: "Mengemas Semen"},
	}
	if _, err := pool.UpsertUnits(ctx, units); err != nil {
		t.Fatalf("UpsertUnits() error = %v", err)
	}

	_, total, err := pool.SearchUnits(ctx, UnitFilter{Query: "semen"})
	if err != nil {
		t.Fatalf("SearchUnits() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("free-text matched %d units, want 2", total)
	}

	_, total, err = pool.SearchUnits(ctx, UnitFilter{Query: "semen", DocUUID: "doc-b"})
	if err != nil {
		t.Fatalf("SearchUnits() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("doc-scoped match = %d, want 1", total)
	}
}

func TestSearchUnitsFreeTextCoversTaxonomySnapshots(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	units := []source.Unit{
		{DocUUID: "doc-a", Code: "A.01", Title: "Mengoperasikan Tanur", Sector: "Manufaktur", SubField: "Produksi Semen"},
		{DocUUID: "doc-b", Code: "B.01", Title: "Memandu Wisata", Sector: "Pariwisata", Field: "Kepemanduan"},
	}
	if _, err := pool.UpsertUnits(ctx, units); err != nil {
		t.Fatalf("UpsertUnits() error = %v", err)
	}

	_, total, err := pool.SearchUnits(ctx, UnitFilter{Query: "pariwisata"})
	if err != nil {
		t.Fatalf("SearchUnits() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("sector snapshot match = %d, want 1", total)
	}

	_, total, err = pool.SearchUnits(ctx, UnitFilter{Query: "produksi semen"})
	if err != nil {
		t.Fatalf("SearchUnits() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("sub-field snapshot match = %d, want 1", total)
	}
}

func TestSearchDocumentsPagination(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	docs := make([]source.Document, 0, 5)
	for _, id := range []string{"doc-a", "doc-b", "doc-c", "doc-d", "doc-e"} {
		docs = append(docs, source.Document{UUID: id, Title: "Judul " + id})
	}
	if _, err := pool.UpsertDocuments(ctx, docs); err != nil {
		t.Fatalf("UpsertDocuments() error = %v", err)
	}

	rows, total, err := pool.SearchDocuments(ctx, DocumentFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("SearchDocuments() error = %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(rows) != 2 {
		t.Fatalf("page size = %d, want 2", len(rows))
	}

	rows, _, err = pool.SearchDocuments(ctx, DocumentFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("SearchDocuments() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("last page size = %d, want 1", len(rows))
	}
}
