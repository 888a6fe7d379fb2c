package db

import "time"

// Column names keep the upstream source's Indonesian vocabulary
// (judul_skkni, sektor, bidang, ...) so the cache stays recognizable next to
// the site it mirrors.

// Document maps documents. The primary key is the canonical identifier
// extracted from the download URL, stable across re-scrapes.
type Document struct {
	UUID         string     `gorm:"column:uuid;primaryKey"`
	Title        string     `gorm:"column:judul_skkni;type:text;not null"`
	Number       string     `gorm:"column:nomor_skkni;type:text"`
	Sector       string     `gorm:"column:sektor;type:text;index"`
	Field        string     `gorm:"column:bidang;type:text;index"`
	SubField     string     `gorm:"column:sub_bidang;type:text;index"`
	Year         string     `gorm:"column:tahun;type:text"`
	DecreeNumber string     `gorm:"column:nomor_kepmen;type:text"`
	DownloadURL  string     `gorm:"column:unduh_url;type:text"`
	ListingURL   string     `gorm:"column:listing_url;type:text"`
	RawPayload   []byte     `gorm:"column:raw_payload"`
	UpdatedAt    *time.Time `gorm:"column:updated_at;index"`
}

func (Document) TableName() string { return "documents" }

// Unit maps units. (doc_uuid, kode_unit) is the natural key.
type Unit struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	DocUUID      string     `gorm:"column:doc_uuid;not null;index;uniqueIndex:uq_doc_unit_code"`
	Code         string     `gorm:"column:kode_unit;not null;uniqueIndex:uq_doc_unit_code"`
	Title        string     `gorm:"column:judul_unit;type:text;not null"`
	Number       string     `gorm:"column:nomor_skkni;type:text"`
	DocTitle     string     `gorm:"column:judul_skkni;type:text"`
	Sector       string     `gorm:"column:sektor;type:text;index"`
	Field        string     `gorm:"column:bidang;type:text;index"`
	SubField     string     `gorm:"column:sub_bidang;type:text;index"`
	Year         string     `gorm:"column:tahun;type:text"`
	DecreeNumber string     `gorm:"column:nomor_kepmen;type:text"`
	DownloadURL  string     `gorm:"column:unduh_url;type:text"`
	ListingURL   string     `gorm:"column:listing_url;type:text"`
	UpdatedAt    *time.Time `gorm:"column:updated_at;index"`
}

func (Unit) TableName() string { return "units" }

// Sector is the taxonomy root. Names are the natural key.
type Sector struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Code      string    `gorm:"column:code"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Sector) TableName() string { return "sectors" }

// Field belongs to exactly one Sector; its name is unique within it.
type Field struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SectorID  int64     `gorm:"column:sector_id;not null;uniqueIndex:uq_field_sector_name;index"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:uq_field_sector_name"`
	Code      string    `gorm:"column:code"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (Field) TableName() string { return "fields" }

// SubField belongs to exactly one Field; its name is unique within it.
type SubField struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	FieldID   int64     `gorm:"column:field_id;not null;uniqueIndex:uq_subfield_field_name;index"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:uq_subfield_field_name"`
	Code      string    `gorm:"column:code"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (SubField) TableName() string { return "sub_fields" }

// DocumentTaxonomy is the resolved taxonomy link for a document as of its
// last reconciliation. Any component may be null when the raw snapshot was
// empty or unresolvable.
type DocumentTaxonomy struct {
	DocUUID    string    `gorm:"column:doc_uuid;primaryKey"`
	SectorID   *int64    `gorm:"column:sector_id;index"`
	FieldID    *int64    `gorm:"column:field_id;index"`
	SubFieldID *int64    `gorm:"column:sub_field_id;index"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (DocumentTaxonomy) TableName() string { return "document_taxonomy" }

// UnitTaxonomy is the resolved taxonomy link for a unit.
type UnitTaxonomy struct {
	UnitID     int64     `gorm:"column:unit_id;primaryKey"`
	SectorID   *int64    `gorm:"column:sector_id;index"`
	FieldID    *int64    `gorm:"column:field_id;index"`
	SubFieldID *int64    `gorm:"column:sub_field_id;index"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (UnitTaxonomy) TableName() string { return "unit_taxonomy" }

func autoMigrateModels() []any {
	return []any{
		&Document{},
		&Unit{},
		&Sector{},
		&Field{},
		&SubField{},
		&DocumentTaxonomy{},
		&UnitTaxonomy{},
	}
}
