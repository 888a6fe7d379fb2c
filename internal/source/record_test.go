package source

import (
	"encoding/json"
	"testing"
)

func TestNormalizeListingDocument(t *testing.T) {
	t.Parallel()

	row := ListingRow{
		"judul":       "Standar Kompetensi Kerja Bidang Logistik",
		"nomor_skkni": "Nomor 166 Tahun 2025 BERLAKU",
		"sektor":      "Pilih Sektor",
		"bidang":      "-",
		"unduh_url":   "https://skkni-api.kemnaker.go.id/v1/public/documents/abc-123/download",
		"listing_url": "https://skkni.kemnaker.go.id/dokumen?limit=20&page=1",
	}

	doc := NormalizeListingDocument(row)
	if doc.UUID != "abc-123" {
		t.Fatalf("unexpected uuid: %q", doc.UUID)
	}
	if doc.Title != "Standar Kompetensi Kerja Bidang Logistik" {
		t.Fatalf("unexpected title: %q", doc.Title)
	}
	if doc.Number != "Nomor 166 Tahun 2025" {
		t.Fatalf("expected status token stripped from number, got %q", doc.Number)
	}
	if doc.Sector != "" || doc.Field != "" {
		t.Fatalf("expected placeholders cleaned to empty, got sector=%q field=%q", doc.Sector, doc.Field)
	}
	if doc.Year != "2025" {
		t.Fatalf("expected year derived from number, got %q", doc.Year)
	}
}

func TestNormalizeListingDocumentFirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	row := ListingRow{
		"judul_skkni": "Judul Utama",
		"judul":       "Judul Cadangan",
	}
	if doc := NormalizeListingDocument(row); doc.Title != "Judul Utama" {
		t.Fatalf("expected primary key name to win, got %q", doc.Title)
	}

	fallback := ListingRow{"judul": "Judul Cadangan"}
	if doc := NormalizeListingDocument(fallback); doc.Title != "Judul Cadangan" {
		t.Fatalf("expected alternate key name to fill in, got %q", doc.Title)
	}
}

func TestNormalizeListingUnit(t *testing.T) {
	t.Parallel()

	row := ListingRow{
		"kode":        "M.741000.001.01 DICABUT",
		"judul_unit":  "Melakukan  Komunikasi\ndi Tempat Kerja",
		"judul_skkni": "Dokumen Induk",
		"sub_bidang":  "-",
		"tahun":       "2019",
	}

	u := NormalizeListingUnit(row)
	if u.Code != "M.741000.001.01" {
		t.Fatalf("expected status token stripped from code, got %q", u.Code)
	}
	if u.Title != "Melakukan Komunikasi di Tempat Kerja" {
		t.Fatalf("expected whitespace collapsed in title, got %q", u.Title)
	}
	if u.DocTitle != "Dokumen Induk" {
		t.Fatalf("expected document title carried for join keys, got %q", u.DocTitle)
	}
	if u.SubField != "" {
		t.Fatalf("expected placeholder sub-field cleaned, got %q", u.SubField)
	}
	if u.Year != "2019" {
		t.Fatalf("unexpected year: %q", u.Year)
	}
}

func TestNormalizeDetail(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"data": {
			"title": "SKKNI Industri Semen",
			"number": "166",
			"number_kepmen": "Kepmen 166/2025",
			"published_at": "2025-03-01T00:00:00Z",
			"core_category": {
				"name": "Bahan Bangunan",
				"category": {"name": "Manufaktur"},
				"class": {"name": "Semen"}
			},
			"units": [
				{"code": "C.239090.001.01", "title": "Mengoperasikan Kiln"},
				{"code": "", "title": "Tanpa Kode"}
			]
		}
	}`)

	doc, units, err := NormalizeDetail("ABC-DEF", payload, "https://api/v1/public/documents/abc-def/download", "https://site/dokumen?page=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.UUID != "abc-def" {
		t.Fatalf("expected lowercased uuid, got %q", doc.UUID)
	}
	if doc.Sector != "Manufaktur" || doc.Field != "Bahan Bangunan" || doc.SubField != "Semen" {
		t.Fatalf("unexpected taxonomy: %q / %q / %q", doc.Sector, doc.Field, doc.SubField)
	}
	if doc.Year != "2025" {
		t.Fatalf("unexpected year: %q", doc.Year)
	}
	if doc.Number != "Nomor 166 Tahun 2025" {
		t.Fatalf("unexpected composed number: %q", doc.Number)
	}
	if len(doc.RawPayload) == 0 {
		t.Fatalf("expected raw payload retained for audit")
	}
	if doc.UpdatedAt == nil || doc.UpdatedAt.Year() != 2025 {
		t.Fatalf("unexpected updated_at: %v", doc.UpdatedAt)
	}

	if len(units) != 1 {
		t.Fatalf("expected code-less unit dropped, got %d units", len(units))
	}
	if units[0].DocUUID != "abc-def" || units[0].Code != "C.239090.001.01" {
		t.Fatalf("unexpected unit: %+v", units[0])
	}
	if units[0].Sector != "Manufaktur" {
		t.Fatalf("expected unit to inherit document taxonomy, got %q", units[0].Sector)
	}
	if units[0].ListingURL != "https://site/dokumen-unit?page=1" {
		t.Fatalf("unexpected unit listing url: %q", units[0].ListingURL)
	}
}

func TestNormalizeDetailDeepScanFallback(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"data": {
			"title": "Dokumen Tanpa Kategori Inti",
			"meta": {
				"sektor": "Pertanian",
				"bidang_name": "Hortikultura",
				"tahun": 2018
			}
		}
	}`)

	doc, _, err := NormalizeDetail("xyz", payload, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Sector != "Pertanian" {
		t.Fatalf("expected deep-scanned sector, got %q", doc.Sector)
	}
	if doc.Field != "Hortikultura" {
		t.Fatalf("expected deep-scanned field, got %q", doc.Field)
	}
	if doc.Year != "2018" {
		t.Fatalf("expected numeric year coerced to text, got %q", doc.Year)
	}
}

func TestNormalizeDetailMalformedPayload(t *testing.T) {
	t.Parallel()

	if _, _, err := NormalizeDetail("abc", json.RawMessage(`{"data": [1,2,3]}`), "", ""); err == nil {
		t.Fatalf("expected error for non-object detail body")
	}
}

func TestExtractTaxonomyFromScriptBlob(t *testing.T) {
	t.Parallel()

	blob := ScriptBlob{
		"props": map[string]any{
			"pageProps": map[string]any{
				"document": map[string]any{
					"sector":       map[string]any{"name": "Jasa Keuangan"},
					"field_name":   "Perbankan",
					"sub_field":    "Pilih Sub Bidang",
					"nomor_kepmen": "Kepmen 9 Tahun 2020",
				},
			},
		},
	}

	fields := ExtractTaxonomy(map[string]any(blob))
	if fields.Sector != "Jasa Keuangan" {
		t.Fatalf("unexpected sector: %q", fields.Sector)
	}
	if fields.Field != "Perbankan" {
		t.Fatalf("unexpected field: %q", fields.Field)
	}
	if fields.SubField != "" {
		t.Fatalf("expected placeholder sub-field discarded, got %q", fields.SubField)
	}
	if fields.DecreeNumber != "Kepmen 9 Tahun 2020" {
		t.Fatalf("unexpected decree number: %q", fields.DecreeNumber)
	}
}

func TestTaxonomyFieldsApplyToFillsOnlyEmpty(t *testing.T) {
	t.Parallel()

	doc := Document{Sector: "Sudah Ada", Year: ""}
	TaxonomyFields{Sector: "Pengganti", Year: "2021"}.ApplyTo(&doc)
	if doc.Sector != "Sudah Ada" {
		t.Fatalf("expected populated sector untouched, got %q", doc.Sector)
	}
	if doc.Year != "2021" {
		t.Fatalf("expected empty year filled, got %q", doc.Year)
	}
}
