package source

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/datanaker/skkni-cache/internal/parsing"
)

// DetailFetcher fetches a raw document detail payload from the public JSON
// API by canonical document id.
type DetailFetcher interface {
	DocumentDetail(ctx context.Context, uuid string) (json.RawMessage, error)
}

// DetailReader exposes the two detail-page surfaces the enrichment waterfall
// can fall back to when the JSON API has no answer: embedded script-tag JSON
// blobs, and label/value pairs scraped from tables, definition lists or form
// labels. Implementations live in the scraping layer; a nil reader disables
// both steps.
type DetailReader interface {
	ScriptBlobs(ctx context.Context, pageURL string) ([]ScriptBlob, error)
	LabeledFields(ctx context.Context, pageURL string) (map[string]string, error)
}

// StepOutcome records what one enrichment step did for one document: the
// fields it contributed, or the reason it was skipped. Skip reasons are kept
// observable instead of being swallowed.
type StepOutcome struct {
	Step    string
	Fields  TaxonomyFields
	Skipped string
}

const (
	stepAPIDetail  = "api_detail"
	stepScriptBlob = "script_blob"
	stepDetailPage = "detail_page"
)

// Enricher fills still-empty taxonomy fields on normalized documents by
// probing, in order: the structured JSON API, embedded script blobs on the
// detail page, and labeled values on the detail page DOM. Each step only
// fills fields that are still empty. At most Limit documents per batch are
// enriched; the rest keep their listing-level fields.
type Enricher struct {
	API    DetailFetcher
	Pages  DetailReader
	Limit  int
	Logger zerolog.Logger
}

// EnrichDocuments enriches the documents in place and returns the number of
// documents it touched plus the competency units the detail payloads carried.
// Fetch failures inside a step skip that step for that document only.
func (e *Enricher) EnrichDocuments(ctx context.Context, docs []Document) (int, []Unit) {
	if e == nil || len(docs) == 0 {
		return 0, nil
	}

	limit := e.Limit
	if limit <= 0 {
		limit = 10
	}

	enriched := 0
	var units []Unit
	for i := range docs {
		if enriched >= limit {
			break
		}
		if !docs[i].Taxonomy().Empty() {
			continue
		}
		outcomes, docUnits := e.enrichOne(ctx, &docs[i])
		units = append(units, docUnits...)
		enriched++

		for _, o := range outcomes {
			evt := e.Logger.Debug().Str("document_uuid", docs[i].UUID).Str("step", o.Step)
			if o.Skipped != "" {
				evt.Str("skipped", o.Skipped).Msg("enrichment step skipped")
				continue
			}
			evt.Msg("enrichment step applied")
		}
	}
	return enriched, units
}

func (e *Enricher) enrichOne(ctx context.Context, doc *Document) ([]StepOutcome, []Unit) {
	outcomes := make([]StepOutcome, 0, 3)

	apiOutcome, units := e.applyAPIDetail(ctx, doc)
	outcomes = append(outcomes, apiOutcome)
	if doc.Taxonomy().Empty() {
		outcomes = append(outcomes, e.applyScriptBlobs(ctx, doc))
	}
	if doc.Taxonomy().Empty() {
		outcomes = append(outcomes, e.applyDetailPage(ctx, doc))
	}
	return outcomes, units
}

func (e *Enricher) applyAPIDetail(ctx context.Context, doc *Document) (StepOutcome, []Unit) {
	if e.API == nil {
		return StepOutcome{Step: stepAPIDetail, Skipped: "api client unavailable"}, nil
	}
	if doc.UUID == "" {
		return StepOutcome{Step: stepAPIDetail, Skipped: "no canonical document id"}, nil
	}

	payload, err := e.API.DocumentDetail(ctx, doc.UUID)
	if err != nil {
		return StepOutcome{Step: stepAPIDetail, Skipped: "fetch failed: " + err.Error()}, nil
	}

	detail, units, err := NormalizeDetail(doc.UUID, payload, doc.DownloadURL, doc.ListingURL)
	if err != nil {
		return StepOutcome{Step: stepAPIDetail, Skipped: "malformed payload: " + err.Error()}, nil
	}

	fields := detail.Taxonomy()
	if fields.Empty() {
		// The units still count even when the payload adds no taxonomy.
		return StepOutcome{Step: stepAPIDetail, Skipped: "payload carried no taxonomy fields"}, units
	}
	fields.ApplyTo(doc)
	if doc.Title == "" {
		doc.Title = detail.Title
	}
	if doc.Number == "" {
		doc.Number = detail.Number
	}
	if len(doc.RawPayload) == 0 {
		doc.RawPayload = detail.RawPayload
	}
	return StepOutcome{Step: stepAPIDetail, Fields: fields}, units
}

func (e *Enricher) applyScriptBlobs(ctx context.Context, doc *Document) StepOutcome {
	if e.Pages == nil {
		return StepOutcome{Step: stepScriptBlob, Skipped: "detail page reader unavailable"}
	}
	if doc.DetailURL == "" {
		return StepOutcome{Step: stepScriptBlob, Skipped: "no detail page url"}
	}

	blobs, err := e.Pages.ScriptBlobs(ctx, doc.DetailURL)
	if err != nil {
		return StepOutcome{Step: stepScriptBlob, Skipped: "fetch failed: " + err.Error()}
	}

	for _, blob := range blobs {
		fields := ExtractTaxonomy(map[string]any(blob))
		if fields.Empty() {
			continue
		}
		fields.ApplyTo(doc)
		return StepOutcome{Step: stepScriptBlob, Fields: fields}
	}
	return StepOutcome{Step: stepScriptBlob, Skipped: "no script blob carried taxonomy fields"}
}

func (e *Enricher) applyDetailPage(ctx context.Context, doc *Document) StepOutcome {
	if e.Pages == nil {
		return StepOutcome{Step: stepDetailPage, Skipped: "detail page reader unavailable"}
	}
	if doc.DetailURL == "" {
		return StepOutcome{Step: stepDetailPage, Skipped: "no detail page url"}
	}

	labeled, err := e.Pages.LabeledFields(ctx, doc.DetailURL)
	if err != nil {
		return StepOutcome{Step: stepDetailPage, Skipped: "fetch failed: " + err.Error()}
	}

	fields := taxonomyFromLabels(labeled)
	if fields.Empty() {
		return StepOutcome{Step: stepDetailPage, Skipped: "no labeled taxonomy fields on page"}
	}
	fields.ApplyTo(doc)
	return StepOutcome{Step: stepDetailPage, Fields: fields}
}

// taxonomyFromLabels resolves scraped label/value pairs ("Sektor", "Sub
// Bidang", "Nomor Kepmen", ...) into taxonomy fields.
func taxonomyFromLabels(labeled map[string]string) TaxonomyFields {
	var out TaxonomyFields
	for label, value := range labeled {
		l := strings.ToLower(parsing.Norm(label))
		v := parsing.CleanPlaceholder(parsing.Norm(value))
		if v == "" {
			continue
		}
		switch {
		case l == "sektor" || l == "sector":
			if out.Sector == "" {
				out.Sector = v
			}
		case strings.Contains(l, "sub") && strings.Contains(l, "bidang"):
			if out.SubField == "" {
				out.SubField = v
			}
		case l == "bidang":
			if out.Field == "" {
				out.Field = v
			}
		case l == "tahun" || l == "year":
			if out.Year == "" {
				out.Year = v
			}
		case strings.Contains(l, "kepmen"):
			if out.DecreeNumber == "" {
				out.DecreeNumber = v
			}
		}
	}
	return out
}
