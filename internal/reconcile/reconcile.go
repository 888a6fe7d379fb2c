// Package reconcile joins freshly scraped competency units to known
// documents through a priority-ordered set of join keys, backfilling taxonomy
// fields the unit's own source could not provide.
package reconcile

import (
	"github.com/datanaker/skkni-cache/internal/parsing"
	"github.com/datanaker/skkni-cache/internal/source"
)

// Tier labels, strongest first.
const (
	TierCanonicalID = "canonical_id"
	TierNumberKey   = "number_key"
	TierTitleKey    = "title_key"
	TierNone        = ""
)

// Index is an immutable three-tier lookup over a batch of documents:
// canonical document id (exact), join-key-by-number, join-key-by-title.
// Each tier keeps only the first document seen for a key; later duplicates
// are ignored for indexing though they remain part of the batch. Build one
// per batch and pass it around; it carries no shared mutable state.
type Index struct {
	byID     map[string]*source.Document
	byNumber map[string]*source.Document
	byTitle  map[string]*source.Document
}

// BuildIndex indexes the documents in order. The slice contents are not
// copied; callers must not mutate the documents while the index is in use.
func BuildIndex(docs []source.Document) *Index {
	idx := &Index{
		byID:     make(map[string]*source.Document, len(docs)),
		byNumber: make(map[string]*source.Document, len(docs)),
		byTitle:  make(map[string]*source.Document, len(docs)),
	}
	for i := range docs {
		d := &docs[i]

		id := d.UUID
		if id == "" {
			id = parsing.CanonicalDocumentID(d.DownloadURL)
		}
		if id != "" {
			if _, dup := idx.byID[id]; !dup {
				idx.byID[id] = d
			}
		}
		if k := parsing.JoinKeyByNumber(d.Number); k != "" {
			if _, dup := idx.byNumber[k]; !dup {
				idx.byNumber[k] = d
			}
		}
		if k := parsing.JoinKeyByTitle(d.Title); k != "" {
			if _, dup := idx.byTitle[k]; !dup {
				idx.byTitle[k] = d
			}
		}
	}
	return idx
}

// Lookup probes the tiers strongest-first for the given unit and returns the
// matched document and the tier that hit, or (nil, TierNone).
func (idx *Index) Lookup(u source.Unit) (*source.Document, string) {
	if idx == nil {
		return nil, TierNone
	}

	id := u.DocUUID
	if id == "" {
		id = parsing.CanonicalDocumentID(u.DownloadURL)
	}
	if id != "" {
		if d, ok := idx.byID[id]; ok {
			return d, TierCanonicalID
		}
	}
	if k := parsing.JoinKeyByNumber(u.Number); k != "" {
		if d, ok := idx.byNumber[k]; ok {
			return d, TierNumberKey
		}
	}
	if k := parsing.JoinKeyByTitle(u.DocTitle); k != "" {
		if d, ok := idx.byTitle[k]; ok {
			return d, TierTitleKey
		}
	}
	return nil, TierNone
}

// MergeUnit backfills the unit's taxonomy fields (sector, field, sub-field,
// year, decree number) from the matched document, filling only fields that
// are still empty on the unit. A unit with no parent identifier also adopts
// the matched document's canonical id. Returns the tier that matched.
func MergeUnit(u *source.Unit, idx *Index) string {
	doc, tier := idx.Lookup(*u)
	if doc == nil {
		return TierNone
	}

	if u.Sector == "" {
		u.Sector = doc.Sector
	}
	if u.Field == "" {
		u.Field = doc.Field
	}
	if u.SubField == "" {
		u.SubField = doc.SubField
	}
	if u.Year == "" {
		u.Year = doc.Year
	}
	if u.DecreeNumber == "" {
		u.DecreeNumber = doc.DecreeNumber
	}
	if u.DocUUID == "" {
		u.DocUUID = doc.UUID
	}
	return tier
}

// MergeUnits reconciles the whole batch in place and returns per-tier match
// counts keyed by tier label (TierNone counts the misses).
func MergeUnits(units []source.Unit, idx *Index) map[string]int {
	counts := make(map[string]int, 4)
	for i := range units {
		counts[MergeUnit(&units[i], idx)]++
	}
	return counts
}
