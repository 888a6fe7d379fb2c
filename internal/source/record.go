package source

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datanaker/skkni-cache/internal/parsing"
)

// Document is the canonical shape every raw variant normalizes into before
// reconciliation and persistence. String fields are empty, never placeholder
// text, when the source had nothing usable.
type Document struct {
	UUID         string
	Title        string
	Number       string
	Sector       string
	Field        string
	SubField     string
	Year         string
	DecreeNumber string
	DownloadURL  string
	ListingURL   string
	DetailURL    string
	UpdatedAt    *time.Time
	RawPayload   json.RawMessage
}

// Unit is the canonical competency-unit shape. DocTitle and DownloadURL are
// carried only as join-key material for reconciliation; the store persists
// the unit against its parent document.
type Unit struct {
	DocUUID      string
	Code         string
	Title        string
	Number       string
	DocTitle     string
	Sector       string
	Field        string
	SubField     string
	Year         string
	DecreeNumber string
	DownloadURL  string
	ListingURL   string
	UpdatedAt    *time.Time
}

// TaxonomyFields is the enrichable subset shared by documents and units.
type TaxonomyFields struct {
	Sector       string
	Field        string
	SubField     string
	Year         string
	DecreeNumber string
}

// Empty reports whether no enrichable field is populated.
func (f TaxonomyFields) Empty() bool {
	return f.Sector == "" && f.Field == "" && f.SubField == "" && f.Year == "" && f.DecreeNumber == ""
}

// ApplyTo copies populated fields into the document, filling only fields
// that are still empty.
func (f TaxonomyFields) ApplyTo(d *Document) {
	if d.Sector == "" {
		d.Sector = f.Sector
	}
	if d.Field == "" {
		d.Field = f.Field
	}
	if d.SubField == "" {
		d.SubField = f.SubField
	}
	if d.Year == "" {
		d.Year = f.Year
	}
	if d.DecreeNumber == "" {
		d.DecreeNumber = f.DecreeNumber
	}
}

// Taxonomy returns the enrichable subset of the document.
func (d *Document) Taxonomy() TaxonomyFields {
	return TaxonomyFields{
		Sector:       d.Sector,
		Field:        d.Field,
		SubField:     d.SubField,
		Year:         d.Year,
		DecreeNumber: d.DecreeNumber,
	}
}

// ListingRow is one raw table row from a listing scrape, keyed by the
// standardized header names the scraping layer emits (kode_unit, judul_skkni,
// sektor, unduh_url, ...). Values are uncleaned cell text.
type ListingRow map[string]string

// ScriptBlob is a decoded JSON state object lifted from a <script> tag on a
// detail page (Next.js/Nuxt style), of unknown nesting.
type ScriptBlob map[string]any

// Alternate key names per semantic field, in resolution order. The first
// non-empty value wins.
var (
	docIDKeys        = []string{"uuid", "id"}
	parentDocIDKeys  = []string{"doc_uuid", "document_uuid", "uuid_dokumen"}
	titleKeys        = []string{"judul_skkni", "judul", "title"}
	unitCodeKeys     = []string{"kode_unit", "kode", "code"}
	unitTitleKeys    = []string{"judul_unit", "judul", "title"}
	numberKeys       = []string{"nomor_skkni", "no_skkni", "skkni_number", "number_skkni", "number"}
	sectorKeys       = []string{"sektor", "sector", "sektor_name", "sector_name", "kategori", "category", "industry_division", "division"}
	fieldKeys        = []string{"bidang", "field", "bidang_name", "field_name", "industry_group", "group", "golongan"}
	subFieldKeys     = []string{"sub_bidang", "subField", "sub_field", "sub_bidang_name", "sub_field_name", "industry_class", "class", "subkategori", "subcategory", "sub_golongan"}
	yearKeys         = []string{"tahun", "year", "published_year", "issued_year", "tahun_penetapan", "tahun_terbit"}
	decreeKeys       = []string{"number_kepmen", "nomor_kepmen", "no_kepmen", "kepmen", "kepmen_number", "kepmenNumber", "decision_number"}
	publishedAtKeys  = []string{"published_at"}
	downloadURLKeys  = []string{"unduh_url", "download_url"}
	listingURLKeys   = []string{"listing_url"}
	detailURLKeys    = []string{"detail_url"}
	updatedAtRowKeys = []string{"updated_at"}
)

func pick(row ListingRow, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(row[n]); v != "" {
			return parsing.Norm(v)
		}
	}
	return ""
}

func pickClean(row ListingRow, names ...string) string {
	return parsing.CleanPlaceholder(pick(row, names...))
}

// NormalizeListingDocument maps one raw document listing row into the
// canonical Document shape. The identifier is derived from the download URL;
// rows without a recognizable download URL produce a Document with an empty
// UUID, which the ingest pipeline skips.
func NormalizeListingDocument(row ListingRow) Document {
	downloadURL := pick(row, downloadURLKeys...)
	uuid := strings.ToLower(pick(row, docIDKeys...))
	if uuid == "" {
		uuid = parsing.CanonicalDocumentID(downloadURL)
	}
	doc := Document{
		UUID:         uuid,
		Title:        pick(row, titleKeys...),
		Number:       parsing.StripStatusTokens(pick(row, numberKeys...)),
		Sector:       pickClean(row, sectorKeys...),
		Field:        pickClean(row, fieldKeys...),
		SubField:     pickClean(row, subFieldKeys...),
		Year:         pickClean(row, yearKeys...),
		DecreeNumber: pickClean(row, decreeKeys...),
		DownloadURL:  downloadURL,
		ListingURL:   pick(row, listingURLKeys...),
		DetailURL:    pick(row, detailURLKeys...),
		UpdatedAt:    parsing.CoerceTime(pick(row, updatedAtRowKeys...)),
	}
	if doc.Year == "" {
		doc.Year = parsing.ExtractYear(doc.DecreeNumber, doc.Number)
	}
	return doc
}

// NormalizeListingUnit maps one raw unit listing row into the canonical Unit
// shape. The parent document identifier comes from the shared download URL
// when present; reconciliation fills it in otherwise.
func NormalizeListingUnit(row ListingRow) Unit {
	downloadURL := pick(row, downloadURLKeys...)
	docUUID := strings.ToLower(pick(row, parentDocIDKeys...))
	if docUUID == "" {
		docUUID = parsing.CanonicalDocumentID(downloadURL)
	}
	u := Unit{
		DocUUID:      docUUID,
		Code:         parsing.StripStatusTokens(pick(row, unitCodeKeys...)),
		Title:        pick(row, unitTitleKeys...),
		Number:       parsing.StripStatusTokens(pick(row, numberKeys...)),
		DocTitle:     pick(row, "judul_skkni"),
		Sector:       pickClean(row, sectorKeys...),
		Field:        pickClean(row, fieldKeys...),
		SubField:     pickClean(row, subFieldKeys...),
		Year:         pickClean(row, yearKeys...),
		DecreeNumber: pickClean(row, decreeKeys...),
		DownloadURL:  downloadURL,
		ListingURL:   pick(row, listingURLKeys...),
		UpdatedAt:    parsing.CoerceTime(pick(row, updatedAtRowKeys...)),
	}
	if u.Year == "" {
		u.Year = parsing.ExtractYear(u.DecreeNumber, u.Number)
	}
	return u
}

// detailEnvelope mirrors the structured part of the public documents API
// response. Everything else is reached through the deep scan.
type detailEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type detailBody struct {
	Title        string          `json:"title"`
	Name         string          `json:"name"`
	Number       string          `json:"number"`
	NumberKepmen string          `json:"number_kepmen"`
	PublishedAt  string          `json:"published_at"`
	CreatedAt    string          `json:"created_at"`
	CoreCategory *coreCategory   `json:"core_category"`
	Units        []detailUnitRow `json:"units"`
}

type coreCategory struct {
	Name     string         `json:"name"`
	Category *namedEntity   `json:"category"`
	Class    map[string]any `json:"class"`
}

type namedEntity struct {
	Name string `json:"name"`
}

type detailUnitRow struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

// NormalizeDetail maps one raw JSON API detail payload into the canonical
// Document plus its embedded Units. The structured core_category mapping is
// tried first (sector from the parent category, field from the group, sub
// field from the class); any field still empty afterwards is filled by a deep
// scan over the whole payload using the alternate key names.
func NormalizeDetail(uuid string, payload json.RawMessage, downloadURL, listingURL string) (Document, []Unit, error) {
	var envelope detailEnvelope
	body := payload
	if err := json.Unmarshal(payload, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		body = envelope.Data
	}

	var typed detailBody
	if err := json.Unmarshal(body, &typed); err != nil {
		return Document{}, nil, err
	}

	title := parsing.Norm(typed.Title)
	if title == "" {
		title = parsing.Norm(typed.Name)
	}
	doc := Document{
		UUID:         strings.ToLower(strings.TrimSpace(uuid)),
		Title:        title,
		Number:       parsing.StripStatusTokens(parsing.Norm(typed.Number)),
		DecreeNumber: parsing.CleanPlaceholder(parsing.Norm(typed.NumberKepmen)),
		DownloadURL:  strings.TrimSpace(downloadURL),
		ListingURL:   strings.TrimSpace(listingURL),
		UpdatedAt:    parsing.CoerceTime(typed.PublishedAt),
		RawPayload:   append(json.RawMessage(nil), payload...),
	}
	if doc.UpdatedAt == nil {
		doc.UpdatedAt = parsing.CoerceTime(typed.CreatedAt)
	}

	if cc := typed.CoreCategory; cc != nil {
		if cc.Category != nil {
			doc.Sector = parsing.CleanPlaceholder(parsing.Norm(cc.Category.Name))
		}
		doc.Field = parsing.CleanPlaceholder(parsing.Norm(cc.Name))
		doc.SubField = parsing.CleanPlaceholder(nodeText(cc.Class))
	}

	var generic map[string]any
	if err := json.Unmarshal(body, &generic); err == nil {
		ExtractTaxonomy(generic).ApplyTo(&doc)
	}

	if doc.Year == "" {
		doc.Year = parsing.ExtractYear(doc.DecreeNumber, doc.Number, typed.PublishedAt)
	}
	if doc.Number == "" && typed.Number != "" {
		doc.Number = parsing.Norm(typed.Number)
	}
	if doc.Number != "" && doc.Year != "" && !strings.Contains(strings.ToLower(doc.Number), "nomor") {
		doc.Number = "Nomor " + doc.Number + " Tahun " + doc.Year
	}
	if doc.DecreeNumber == "" {
		doc.DecreeNumber = doc.Number
	}

	units := make([]Unit, 0, len(typed.Units))
	for _, raw := range typed.Units {
		code := parsing.StripStatusTokens(parsing.Norm(raw.Code))
		if code == "" {
			continue
		}
		title := parsing.Norm(raw.Title)
		if title == "" {
			title = parsing.Norm(raw.Name)
		}
		units = append(units, Unit{
			DocUUID:      doc.UUID,
			Code:         code,
			Title:        title,
			Number:       doc.Number,
			DocTitle:     doc.Title,
			Sector:       doc.Sector,
			Field:        doc.Field,
			SubField:     doc.SubField,
			Year:         doc.Year,
			DecreeNumber: doc.DecreeNumber,
			DownloadURL:  doc.DownloadURL,
			ListingURL:   unitListingURL(doc.ListingURL),
			UpdatedAt:    doc.UpdatedAt,
		})
	}

	return doc, units, nil
}

func unitListingURL(docListingURL string) string {
	if docListingURL == "" {
		return ""
	}
	return strings.Replace(docListingURL, "/dokumen", "/dokumen-unit", 1)
}

// ExtractTaxonomy walks an arbitrarily nested payload (detail JSON or script
// blob) and resolves the taxonomy fields by alternate key names, first match
// per field. Placeholder values are discarded.
func ExtractTaxonomy(node any) TaxonomyFields {
	var out TaxonomyFields
	walkTaxonomy(node, &out)
	out.Sector = parsing.CleanPlaceholder(out.Sector)
	out.Field = parsing.CleanPlaceholder(out.Field)
	out.SubField = parsing.CleanPlaceholder(out.SubField)
	out.Year = parsing.CleanPlaceholder(out.Year)
	out.DecreeNumber = parsing.CleanPlaceholder(out.DecreeNumber)
	return out
}

func walkTaxonomy(node any, out *TaxonomyFields) {
	switch n := node.(type) {
	case map[string]any:
		// Sorted keys keep the scan deterministic; Go map order is not.
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := n[k]
			if out.Sector == "" && matchKey(k, sectorKeys) {
				out.Sector = nodeText(v)
			}
			if out.Field == "" && matchKey(k, fieldKeys) {
				out.Field = nodeText(v)
			}
			if out.SubField == "" && matchKey(k, subFieldKeys) {
				out.SubField = nodeText(v)
			}
			if out.Year == "" && matchKey(k, yearKeys) {
				out.Year = nodeText(v)
			}
			if out.DecreeNumber == "" && matchKey(k, decreeKeys) {
				out.DecreeNumber = nodeText(v)
			}
		}
		for _, k := range keys {
			walkTaxonomy(n[k], out)
		}
	case []any:
		for _, v := range n {
			walkTaxonomy(v, out)
		}
	}
}

func matchKey(key string, targets []string) bool {
	kl := strings.ToLower(key)
	for _, t := range targets {
		tl := strings.ToLower(t)
		if kl == tl || strings.Contains(kl, tl) {
			return true
		}
	}
	return false
}

// nodeText coerces a scanned node into display text: strings and numbers
// directly, objects through their name/label-style members.
func nodeText(v any) string {
	switch t := v.(type) {
	case string:
		return parsing.Norm(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case map[string]any:
		for _, k := range []string{"name", "nama", "label", "title"} {
			if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
				return parsing.Norm(s)
			}
		}
	case []any:
		if len(t) > 0 {
			return nodeText(t[0])
		}
	}
	return ""
}
