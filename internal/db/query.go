package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/datanaker/skkni-cache/internal/parsing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// DocumentFilter narrows a document search. Zero values leave a dimension
// unfiltered; taxonomy ids are unset when non-positive.
type DocumentFilter struct {
	Query      string
	Sector     string
	Field      string
	SubField   string
	Year       string
	SectorID   int64
	FieldID    int64
	SubFieldID int64
	Limit      int
	Offset     int
}

// UnitFilter narrows a unit search.
type UnitFilter struct {
	Query      string
	Sector     string
	Field      string
	SubField   string
	Year       string
	DocUUID    string
	SectorID   int64
	FieldID    int64
	SubFieldID int64
	Limit      int
	Offset     int
}

// DocumentRow is a document as served by the read API. Taxonomy names come
// from the resolved link when present, falling back to the raw snapshot.
type DocumentRow struct {
	UUID         string     `json:"uuid"`
	Title        string     `json:"judul_skkni"`
	Number       string     `json:"nomor_skkni"`
	Sector       string     `json:"sektor"`
	Field        string     `json:"bidang"`
	SubField     string     `json:"sub_bidang"`
	Year         string     `json:"tahun"`
	DecreeNumber string     `json:"nomor_kepmen"`
	DownloadURL  string     `json:"unduh_url"`
	ListingURL   string     `json:"listing_url"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// UnitRow is a competency unit as served by the read API.
type UnitRow struct {
	ID           int64      `json:"id"`
	DocUUID      string     `json:"doc_uuid"`
	Code         string     `json:"kode_unit"`
	Title        string     `json:"judul_unit"`
	Number       string     `json:"nomor_skkni"`
	DocTitle     string     `json:"judul_skkni"`
	Sector       string     `json:"sektor"`
	Field        string     `json:"bidang"`
	SubField     string     `json:"sub_bidang"`
	Year         string     `json:"tahun"`
	DecreeNumber string     `json:"nomor_kepmen"`
	DownloadURL  string     `json:"unduh_url"`
	ListingURL   string     `json:"listing_url"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// The id filters prefer the resolved link and fall back to a
// case-insensitive match on the raw snapshot name when the link is absent.
const documentWhere = `
	WHERE (? = '' OR LOWER(d.judul_skkni) LIKE ? OR LOWER(d.nomor_skkni) LIKE ?
		OR LOWER(d.sektor) LIKE ? OR LOWER(d.bidang) LIKE ? OR LOWER(d.sub_bidang) LIKE ?)
	AND (? = '' OR LOWER(d.sektor) = LOWER(?))
	AND (? = '' OR LOWER(d.bidang) = LOWER(?))
	AND (? = '' OR LOWER(d.sub_bidang) = LOWER(?))
	AND (? = '' OR d.tahun = ?)
	AND (? <= 0 OR dt.sector_id = ?
		OR (dt.sector_id IS NULL AND LOWER(d.sektor) IN (SELECT LOWER(name) FROM sectors WHERE id = ?)))
	AND (? <= 0 OR dt.field_id = ?
		OR (dt.field_id IS NULL AND LOWER(d.bidang) IN (SELECT LOWER(name) FROM fields WHERE id = ?)))
	AND (? <= 0 OR dt.sub_field_id = ?
		OR (dt.sub_field_id IS NULL AND LOWER(d.sub_bidang) IN (SELECT LOWER(name) FROM sub_fields WHERE id = ?)))`

func documentWhereArgs(f DocumentFilter) []any {
	q := strings.ToLower(parsing.Norm(f.Query))
	pattern := "%" + q + "%"
	sector := parsing.Norm(f.Sector)
	field := parsing.Norm(f.Field)
	subField := parsing.Norm(f.SubField)
	year := parsing.Norm(f.Year)
	return []any{
		q, pattern, pattern, pattern, pattern, pattern,
		sector, sector,
		field, field,
		subField, subField,
		year, year,
		f.SectorID, f.SectorID, f.SectorID,
		f.FieldID, f.FieldID, f.FieldID,
		f.SubFieldID, f.SubFieldID, f.SubFieldID,
	}
}

// SearchDocuments returns matching documents plus the unpaginated match
// count.
func (p *Pool) SearchDocuments(ctx context.Context, f DocumentFilter) ([]DocumentRow, int64, error) {
	if p == nil || p.gdb == nil {
		return nil, 0, fmt.Errorf("database pool is not initialized")
	}

	base := `
	FROM documents d
	LEFT JOIN document_taxonomy dt ON dt.doc_uuid = d.uuid` + documentWhere
	args := documentWhereArgs(f)

	var total int64
	if err := p.QueryRow(ctx, "SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := `
	SELECT d.uuid, d.judul_skkni, d.nomor_skkni,
		COALESCE(s.name, d.sektor) AS sektor,
		COALESCE(fl.name, d.bidang) AS bidang,
		COALESCE(sf.name, d.sub_bidang) AS sub_bidang,
		d.tahun, d.nomor_kepmen, d.unduh_url, d.listing_url, d.updated_at
	FROM documents d
	LEFT JOIN document_taxonomy dt ON dt.doc_uuid = d.uuid
	LEFT JOIN sectors s ON s.id = dt.sector_id
	LEFT JOIN fields fl ON fl.id = dt.field_id
	LEFT JOIN sub_fields sf ON sf.id = dt.sub_field_id` + documentWhere + `
	ORDER BY d.updated_at IS NULL, d.updated_at DESC, d.uuid
	LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	out := make([]DocumentRow, 0, limit)
	for rows.Next() {
		var r DocumentRow
		var updatedAt sql.NullTime
		if err := rows.Scan(
			&r.UUID, &r.Title, &r.Number,
			&r.Sector, &r.Field, &r.SubField,
			&r.Year, &r.DecreeNumber, &r.DownloadURL, &r.ListingURL, &updatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan document row: %w", err)
		}
		if updatedAt.Valid {
			t := updatedAt.Time.UTC()
			r.UpdatedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate document rows: %w", err)
	}
	return out, total, nil
}

const unitWhere = `
	WHERE (? = '' OR LOWER(u.judul_unit) LIKE ? OR LOWER(u.kode_unit) LIKE ?
		OR LOWER(u.judul_skkni) LIKE ? OR LOWER(u.nomor_skkni) LIKE ?
		OR LOWER(u.sektor) LIKE ? OR LOWER(u.bidang) LIKE ? OR LOWER(u.sub_bidang) LIKE ?)
	AND (? = '' OR LOWER(u.sektor) = LOWER(?))
	AND (? = '' OR LOWER(u.bidang) = LOWER(?))
	AND (? = '' OR LOWER(u.sub_bidang) = LOWER(?))
	AND (? = '' OR u.tahun = ?)
	AND (? = '' OR u.doc_uuid = ?)
	AND (? <= 0 OR ut.sector_id = ?
		OR (ut.sector_id IS NULL AND LOWER(u.sektor) IN (SELECT LOWER(name) FROM sectors WHERE id = ?)))
	AND (? <= 0 OR ut.field_id = ?
		OR (ut.field_id IS NULL AND LOWER(u.bidang) IN (SELECT LOWER(name) FROM fields WHERE id = ?)))
	AND (? <= 0 OR ut.sub_field_id = ?
		OR (ut.sub_field_id IS NULL AND LOWER(u.sub_bidang) IN (SELECT LOWER(name) FROM sub_fields WHERE id = ?)))`

func unitWhereArgs(f UnitFilter) []any {
	q := strings.ToLower(parsing.Norm(f.Query))
	pattern := "%" + q + "%"
	sector := parsing.Norm(f.Sector)
	field := parsing.Norm(f.Field)
	subField := parsing.Norm(f.SubField)
	year := parsing.Norm(f.Year)
	docUUID := parsing.Norm(f.DocUUID)
	return []any{
		q, pattern, pattern, pattern, pattern, pattern, pattern, pattern,
		sector, sector,
		field, field,
		subField, subField,
		year, year,
		docUUID, docUUID,
		f.SectorID, f.SectorID, f.SectorID,
		f.FieldID, f.FieldID, f.FieldID,
		f.SubFieldID, f.SubFieldID, f.SubFieldID,
	}
}

// SearchUnits returns matching competency units plus the unpaginated match
// count.
func (p *Pool) SearchUnits(ctx context.Context, f UnitFilter) ([]UnitRow, int64, error) {
	if p == nil || p.gdb == nil {
		return nil, 0, fmt.Errorf("database pool is not initialized")
	}

	base := `
	FROM units u
	LEFT JOIN unit_taxonomy ut ON ut.unit_id = u.id` + unitWhere
	args := unitWhereArgs(f)

	var total int64
	if err := p.QueryRow(ctx, "SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}

	limit, offset := clampPage(f.Limit, f.Offset)
	query := `
	SELECT u.id, u.doc_uuid, u.kode_unit, u.judul_unit, u.nomor_skkni, u.judul_skkni,
		COALESCE(s.name, u.sektor) AS sektor,
		COALESCE(fl.name, u.bidang) AS bidang,
		COALESCE(sf.name, u.sub_bidang) AS sub_bidang,
		u.tahun, u.nomor_kepmen, u.unduh_url, u.listing_url, u.updated_at
	FROM units u
	LEFT JOIN unit_taxonomy ut ON ut.unit_id = u.id
	LEFT JOIN sectors s ON s.id = ut.sector_id
	LEFT JOIN fields fl ON fl.id = ut.field_id
	LEFT JOIN sub_fields sf ON sf.id = ut.sub_field_id` + unitWhere + `
	ORDER BY u.updated_at IS NULL, u.updated_at DESC, u.id
	LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search units: %w", err)
	}
	defer rows.Close()

	out := make([]UnitRow, 0, limit)
	for rows.Next() {
		var r UnitRow
		var updatedAt sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.DocUUID, &r.Code, &r.Title, &r.Number, &r.DocTitle,
			&r.Sector, &r.Field, &r.SubField,
			&r.Year, &r.DecreeNumber, &r.DownloadURL, &r.ListingURL, &updatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan unit row: %w", err)
		}
		if updatedAt.Valid {
			t := updatedAt.Time.UTC()
			r.UpdatedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate unit rows: %w", err)
	}
	return out, total, nil
}

// SectorRow is a taxonomy sector with its linked document count.
type SectorRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Documents int64  `json:"documents"`
}

// FieldRow is a taxonomy field with its linked document count.
type FieldRow struct {
	ID        int64  `json:"id"`
	SectorID  int64  `json:"sector_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Documents int64  `json:"documents"`
}

// SubFieldRow is a taxonomy sub-field with its linked document count.
type SubFieldRow struct {
	ID        int64  `json:"id"`
	FieldID   int64  `json:"field_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Documents int64  `json:"documents"`
}

// ListSectors returns all sectors ordered by name, with document counts.
func (p *Pool) ListSectors(ctx context.Context, limit, offset int) ([]SectorRow, int64, error) {
	if p == nil || p.gdb == nil {
		return nil, 0, fmt.Errorf("database pool is not initialized")
	}

	var total int64
	if err := p.QueryRow(ctx, "SELECT COUNT(*) FROM sectors").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sectors: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	rows, err := p.Query(ctx, `
	SELECT s.id, s.name, s.code, COUNT(dt.doc_uuid) AS documents
	FROM sectors s
	LEFT JOIN document_taxonomy dt ON dt.sector_id = s.id
	GROUP BY s.id, s.name, s.code
	ORDER BY s.name
	LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sectors: %w", err)
	}
	defer rows.Close()

	out := make([]SectorRow, 0, limit)
	for rows.Next() {
		var r SectorRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Code, &r.Documents); err != nil {
			return nil, 0, fmt.Errorf("scan sector row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sector rows: %w", err)
	}
	return out, total, nil
}

// ListFields returns the fields under a sector ordered by name.
func (p *Pool) ListFields(ctx context.Context, sectorID int64, limit, offset int) ([]FieldRow, int64, error) {
	if p == nil || p.gdb == nil {
		return nil, 0, fmt.Errorf("database pool is not initialized")
	}

	var total int64
	if err := p.QueryRow(ctx, "SELECT COUNT(*) FROM fields WHERE sector_id = ?", sectorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fields: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	rows, err := p.Query(ctx, `
	SELECT f.id, f.sector_id, f.name, f.code, COUNT(dt.doc_uuid) AS documents
	FROM fields f
	LEFT JOIN document_taxonomy dt ON dt.field_id = f.id
	WHERE f.sector_id = ?
	GROUP BY f.id, f.sector_id, f.name, f.code
	ORDER BY f.name
	LIMIT ? OFFSET ?`, sectorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	out := make([]FieldRow, 0, limit)
	for rows.Next() {
		var r FieldRow
		if err := rows.Scan(&r.ID, &r.SectorID, &r.Name, &r.Code, &r.Documents); err != nil {
			return nil, 0, fmt.Errorf("scan field row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate field rows: %w", err)
	}
	return out, total, nil
}

// ListSubFields returns the sub-fields under a field ordered by name.
func (p *Pool) ListSubFields(ctx context.Context, fieldID int64, limit, offset int) ([]SubFieldRow, int64, error) {
	if p == nil || p.gdb == nil {
		return nil, 0, fmt.Errorf("database pool is not initialized")
	}

	var total int64
	if err := p.QueryRow(ctx, "SELECT COUNT(*) FROM sub_fields WHERE field_id = ?", fieldID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sub-fields: %w", err)
	}

	limit, offset = clampPage(limit, offset)
	rows, err := p.Query(ctx, `
	SELECT sf.id, sf.field_id, sf.name, sf.code, COUNT(dt.doc_uuid) AS documents
	FROM sub_fields sf
	LEFT JOIN document_taxonomy dt ON dt.sub_field_id = sf.id
	WHERE sf.field_id = ?
	GROUP BY sf.id, sf.field_id, sf.name, sf.code
	ORDER BY sf.name
	LIMIT ? OFFSET ?`, fieldID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sub-fields: %w", err)
	}
	defer rows.Close()

	out := make([]SubFieldRow, 0, limit)
	for rows.Next() {
		var r SubFieldRow
		if err := rows.Scan(&r.ID, &r.FieldID, &r.Name, &r.Code, &r.Documents); err != nil {
			return nil, 0, fmt.Errorf("scan sub-field row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sub-field rows: %w", err)
	}
	return out, total, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
