package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/datanaker/skkni-cache/internal/config"
	"github.com/datanaker/skkni-cache/internal/ingest"
)

func TestResolveSeedsMergesAndDeduplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seedFile := filepath.Join(dir, "seeds.txt")
	content := "# komentar\ndoc-c\n\ndoc-a\n"
	if err := os.WriteFile(seedFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	cfg := &config.Config{SeedUUIDs: "doc-b, doc-a", SeedFile: seedFile}
	got, err := resolveSeeds("doc-a, doc-d", "", cfg)
	if err != nil {
		t.Fatalf("resolveSeeds() error = %v", err)
	}

	want := []string{"doc-a", "doc-d", "doc-b", "doc-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("resolveSeeds() = %v, want %v", got, want)
	}
}

func TestResolveSeedsFlagFileOverridesConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	flagFile := filepath.Join(dir, "flag.txt")
	if err := os.WriteFile(flagFile, []byte("doc-x\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	cfg := &config.Config{SeedFile: filepath.Join(dir, "missing.txt")}
	got, err := resolveSeeds("", flagFile, cfg)
	if err != nil {
		t.Fatalf("resolveSeeds() error = %v", err)
	}
	if len(got) != 1 || got[0] != "doc-x" {
		t.Fatalf("resolveSeeds() = %v, want [doc-x]", got)
	}
}

func TestResolveSeedsMissingFileFails(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := resolveSeeds("", "/nonexistent/seeds.txt", cfg); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestMergeReport(t *testing.T) {
	t.Parallel()

	combined := ingest.Report{Tiers: map[string]int{}}
	mergeReport(&combined, ingest.Report{Fetched: 2, Documents: 2, Units: 5, Tiers: map[string]int{"canonical_id": 5}})
	mergeReport(&combined, ingest.Report{Fetched: 1, Skipped: 1, Tiers: map[string]int{"number_key": 1}})

	if combined.Fetched != 3 || combined.Documents != 2 || combined.Units != 5 || combined.Skipped != 1 {
		t.Fatalf("combined = %+v", combined)
	}
	if combined.Tiers["canonical_id"] != 5 || combined.Tiers["number_key"] != 1 {
		t.Fatalf("tiers = %v", combined.Tiers)
	}
}
