package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/datanaker/skkni-cache/internal/globaltime"
	"github.com/datanaker/skkni-cache/internal/parsing"
)

// resolveSector returns the id of the sector with the given name, creating it
// on first sight. Empty or placeholder names resolve to nil without creating
// a row.
func resolveSector(tx *gorm.DB, name string) (*int64, error) {
	name = parsing.Norm(name)
	if name == "" {
		return nil, nil
	}

	var sector Sector
	err := tx.Where("LOWER(name) = LOWER(?)", name).First(&sector).Error
	if err == nil {
		return &sector.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup sector %q: %w", name, err)
	}

	sector = Sector{
		Name:      name,
		Code:      parsing.Slug(name),
		CreatedAt: globaltime.Now(),
	}
	if createErr := tx.Create(&sector).Error; createErr != nil {
		// A concurrent ingest may have won the unique-name race.
		if refetchErr := tx.Where("LOWER(name) = LOWER(?)", name).First(&sector).Error; refetchErr != nil {
			return nil, fmt.Errorf("create sector %q: %w", name, createErr)
		}
	}
	return &sector.ID, nil
}

// resolveField returns the id of the field scoped to its parent sector.
// A field without a resolved parent sector is not persisted.
func resolveField(tx *gorm.DB, sectorID *int64, name string) (*int64, error) {
	name = parsing.Norm(name)
	if name == "" || sectorID == nil {
		return nil, nil
	}

	var field Field
	err := tx.Where("sector_id = ? AND LOWER(name) = LOWER(?)", *sectorID, name).First(&field).Error
	if err == nil {
		return &field.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup field %q: %w", name, err)
	}

	field = Field{
		SectorID:  *sectorID,
		Name:      name,
		Code:      parsing.Slug(name),
		CreatedAt: globaltime.Now(),
	}
	if createErr := tx.Create(&field).Error; createErr != nil {
		if refetchErr := tx.Where("sector_id = ? AND LOWER(name) = LOWER(?)", *sectorID, name).First(&field).Error; refetchErr != nil {
			return nil, fmt.Errorf("create field %q: %w", name, createErr)
		}
	}
	return &field.ID, nil
}

// resolveSubField returns the id of the sub-field scoped to its parent field.
func resolveSubField(tx *gorm.DB, fieldID *int64, name string) (*int64, error) {
	name = parsing.Norm(name)
	if name == "" || fieldID == nil {
		return nil, nil
	}

	var sub SubField
	err := tx.Where("field_id = ? AND LOWER(name) = LOWER(?)", *fieldID, name).First(&sub).Error
	if err == nil {
		return &sub.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup sub-field %q: %w", name, err)
	}

	sub = SubField{
		FieldID:   *fieldID,
		Name:      name,
		Code:      parsing.Slug(name),
		CreatedAt: globaltime.Now(),
	}
	if createErr := tx.Create(&sub).Error; createErr != nil {
		if refetchErr := tx.Where("field_id = ? AND LOWER(name) = LOWER(?)", *fieldID, name).First(&sub).Error; refetchErr != nil {
			return nil, fmt.Errorf("create sub-field %q: %w", name, createErr)
		}
	}
	return &sub.ID, nil
}

// resolveTaxonomyChain resolves sector, field, and sub-field names into link
// ids. A missing level breaks the chain below it: a field never attaches to
// an absent sector.
func resolveTaxonomyChain(tx *gorm.DB, sector, field, subField string) (sectorID, fieldID, subFieldID *int64, err error) {
	sectorID, err = resolveSector(tx, sector)
	if err != nil {
		return nil, nil, nil, err
	}
	fieldID, err = resolveField(tx, sectorID, field)
	if err != nil {
		return nil, nil, nil, err
	}
	subFieldID, err = resolveSubField(tx, fieldID, subField)
	if err != nil {
		return nil, nil, nil, err
	}
	return sectorID, fieldID, subFieldID, nil
}
