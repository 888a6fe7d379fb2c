package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateDocumentDetailEnvelope(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{"data":{"uuid":"abc-123","name":"Pengolahan Susu","year":2020}}`)
	if err := ValidateDocumentDetail(payload); err != nil {
		t.Fatalf("ValidateDocumentDetail() error = %v", err)
	}
}

func TestValidateDocumentDetailBareBody(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{"title":"SKKNI Nomor 166 Tahun 2025","units":[{"code":"A.01"}]}`)
	if err := ValidateDocumentDetail(payload); err != nil {
		t.Fatalf("ValidateDocumentDetail() error = %v", err)
	}
}

func TestValidateDocumentDetailRejectsEmpty(t *testing.T) {
	t.Parallel()

	if err := ValidateDocumentDetail(json.RawMessage(``)); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if err := ValidateDocumentDetail(json.RawMessage(`   `)); err == nil {
		t.Fatal("expected error for blank payload")
	}
}

func TestValidateDocumentDetailRejectsTrailingContent(t *testing.T) {
	t.Parallel()

	err := ValidateDocumentDetail(json.RawMessage(`{"uuid":"x"}{"uuid":"y"}`))
	if err == nil {
		t.Fatal("expected error for trailing content")
	}
	if !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDocumentDetailRejectsAnonymousPayload(t *testing.T) {
	t.Parallel()

	err := ValidateDocumentDetail(json.RawMessage(`{"data":{"year":2020}}`))
	if err == nil {
		t.Fatal("expected error for payload without identity")
	}
}

func TestValidateDocumentDetailRejectsWrongUnitsShape(t *testing.T) {
	t.Parallel()

	err := ValidateDocumentDetail(json.RawMessage(`{"uuid":"abc","units":"not-a-list"}`))
	if err == nil {
		t.Fatal("expected schema error for non-array units")
	}
}
