package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/datanaker/skkni-cache/internal/globaltime"
	"github.com/datanaker/skkni-cache/internal/parsing"
	"github.com/datanaker/skkni-cache/internal/source"
)

// DefaultCacheTTLDays is how long a cached row stays fresh before a
// background refresh is warranted.
const DefaultCacheTTLDays = 30

// UpsertDocuments writes a batch of normalized documents inside a single
// transaction, resolving each one's taxonomy snapshot into link rows.
// Records without a usable identifier are skipped. Returns the number of
// rows written.
func (p *Pool) UpsertDocuments(ctx context.Context, docs []source.Document) (int, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	written := 0
	err := p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range docs {
			ok, err := upsertDocument(tx, &docs[i])
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert documents: %w", err)
	}
	return written, nil
}

func upsertDocument(tx *gorm.DB, doc *source.Document) (bool, error) {
	uuid := parsing.Norm(doc.UUID)
	if uuid == "" {
		uuid = parsing.CanonicalDocumentID(doc.DownloadURL)
	}
	if uuid == "" || parsing.Norm(doc.Title) == "" {
		return false, nil
	}

	updatedAt := doc.UpdatedAt
	if updatedAt == nil {
		now := globaltime.UTC()
		updatedAt = &now
	}

	row := Document{
		UUID:         uuid,
		Title:        parsing.Norm(doc.Title),
		Number:       parsing.Norm(doc.Number),
		Sector:       parsing.Norm(doc.Sector),
		Field:        parsing.Norm(doc.Field),
		SubField:     parsing.Norm(doc.SubField),
		Year:         parsing.Norm(doc.Year),
		DecreeNumber: parsing.Norm(doc.DecreeNumber),
		DownloadURL:  parsing.Norm(doc.DownloadURL),
		ListingURL:   parsing.Norm(doc.ListingURL),
		RawPayload:   doc.RawPayload,
		UpdatedAt:    updatedAt,
	}

	var existing Document
	err := tx.Where("uuid = ?", uuid).First(&existing).Error
	switch {
	case err == nil:
		if err := tx.Model(&Document{}).Where("uuid = ?", uuid).Updates(map[string]any{
			"judul_skkni":  row.Title,
			"nomor_skkni":  row.Number,
			"sektor":       row.Sector,
			"bidang":       row.Field,
			"sub_bidang":   row.SubField,
			"tahun":        row.Year,
			"nomor_kepmen": row.DecreeNumber,
			"unduh_url":    row.DownloadURL,
			"listing_url":  row.ListingURL,
			"raw_payload":  row.RawPayload,
			"updated_at":   row.UpdatedAt,
		}).Error; err != nil {
			return false, fmt.Errorf("update document %s: %w", uuid, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&row).Error; err != nil {
			return false, fmt.Errorf("insert document %s: %w", uuid, err)
		}
	default:
		return false, fmt.Errorf("lookup document %s: %w", uuid, err)
	}

	sectorID, fieldID, subFieldID, err := resolveTaxonomyChain(tx, row.Sector, row.Field, row.SubField)
	if err != nil {
		return false, err
	}
	link := DocumentTaxonomy{
		DocUUID:    uuid,
		SectorID:   sectorID,
		FieldID:    fieldID,
		SubFieldID: subFieldID,
		UpdatedAt:  globaltime.UTC(),
	}
	if err := tx.Save(&link).Error; err != nil {
		return false, fmt.Errorf("link document %s taxonomy: %w", uuid, err)
	}
	return true, nil
}

// UpsertUnits writes a batch of normalized units inside a single transaction.
// (doc_uuid, kode_unit) is the natural key. Units without a code or title
// are skipped.
func (p *Pool) UpsertUnits(ctx context.Context, units []source.Unit) (int, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	if len(units) == 0 {
		return 0, nil
	}

	written := 0
	err := p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range units {
			ok, err := upsertUnit(tx, &units[i])
			if err != nil {
				return err
			}
			if ok {
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert units: %w", err)
	}
	return written, nil
}

func upsertUnit(tx *gorm.DB, unit *source.Unit) (bool, error) {
	code := parsing.Norm(unit.Code)
	title := parsing.Norm(unit.Title)
	if code == "" || title == "" {
		return false, nil
	}
	docUUID := parsing.Norm(unit.DocUUID)
	if docUUID == "" {
		docUUID = parsing.CanonicalDocumentID(unit.DownloadURL)
	}
	if docUUID == "" {
		return false, nil
	}

	updatedAt := unit.UpdatedAt
	if updatedAt == nil {
		now := globaltime.UTC()
		updatedAt = &now
	}

	row := Unit{
		DocUUID:      docUUID,
		Code:         code,
		Title:        title,
		Number:       parsing.Norm(unit.Number),
		DocTitle:     parsing.Norm(unit.DocTitle),
		Sector:       parsing.Norm(unit.Sector),
		Field:        parsing.Norm(unit.Field),
		SubField:     parsing.Norm(unit.SubField),
		Year:         parsing.Norm(unit.Year),
		DecreeNumber: parsing.Norm(unit.DecreeNumber),
		DownloadURL:  parsing.Norm(unit.DownloadURL),
		ListingURL:   parsing.Norm(unit.ListingURL),
		UpdatedAt:    updatedAt,
	}

	var existing Unit
	err := tx.Where("doc_uuid = ? AND kode_unit = ?", docUUID, code).First(&existing).Error
	switch {
	case err == nil:
		row.ID = existing.ID
		if err := tx.Model(&Unit{}).Where("id = ?", existing.ID).Updates(map[string]any{
			"judul_unit":   row.Title,
			"nomor_skkni":  row.Number,
			"judul_skkni":  row.DocTitle,
			"sektor":       row.Sector,
			"bidang":       row.Field,
			"sub_bidang":   row.SubField,
			"tahun":        row.Year,
			"nomor_kepmen": row.DecreeNumber,
			"unduh_url":    row.DownloadURL,
			"listing_url":  row.ListingURL,
			"updated_at":   row.UpdatedAt,
		}).Error; err != nil {
			return false, fmt.Errorf("update unit %s/%s: %w", docUUID, code, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&row).Error; err != nil {
			return false, fmt.Errorf("insert unit %s/%s: %w", docUUID, code, err)
		}
	default:
		return false, fmt.Errorf("lookup unit %s/%s: %w", docUUID, code, err)
	}

	sectorID, fieldID, subFieldID, err := resolveTaxonomyChain(tx, row.Sector, row.Field, row.SubField)
	if err != nil {
		return false, err
	}
	link := UnitTaxonomy{
		UnitID:     row.ID,
		SectorID:   sectorID,
		FieldID:    fieldID,
		SubFieldID: subFieldID,
		UpdatedAt:  globaltime.UTC(),
	}
	if err := tx.Save(&link).Error; err != nil {
		return false, fmt.Errorf("link unit %s/%s taxonomy: %w", docUUID, code, err)
	}
	return true, nil
}

// CachedDocuments loads every cached document as a normalized record so a
// fresh batch can reconcile against prior scrapes.
func (p *Pool) CachedDocuments(ctx context.Context) ([]source.Document, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var rows []Document
	if err := p.gdb.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load cached documents: %w", err)
	}
	docs := make([]source.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, source.Document{
			UUID:         r.UUID,
			Title:        r.Title,
			Number:       r.Number,
			Sector:       r.Sector,
			Field:        r.Field,
			SubField:     r.SubField,
			Year:         r.Year,
			DecreeNumber: r.DecreeNumber,
			DownloadURL:  r.DownloadURL,
			ListingURL:   r.ListingURL,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return docs, nil
}

// NewestDocumentUpdate reports the most recent updated_at across cached
// documents, or nil when the cache is empty.
func (p *Pool) NewestDocumentUpdate(ctx context.Context) (*time.Time, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var row Document
	err := p.gdb.WithContext(ctx).
		Where("updated_at IS NOT NULL").
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("newest document update: %w", err)
	}
	return row.UpdatedAt, nil
}

// CountDocuments reports how many documents the cache holds.
func (p *Pool) CountDocuments(ctx context.Context) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	var n int64
	if err := p.gdb.WithContext(ctx).Model(&Document{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// NeedsRefresh reports whether a cache stamped at ts is older than ttlDays.
// A nil stamp always needs a refresh; a non-positive TTL falls back to the
// default.
func NeedsRefresh(ts *time.Time, ttlDays int) bool {
	if ts == nil {
		return true
	}
	if ttlDays <= 0 {
		ttlDays = DefaultCacheTTLDays
	}
	cutoff := globaltime.UTC().AddDate(0, 0, -ttlDays)
	return ts.Before(cutoff)
}
