package fake

import (
	"errors"
	"testing"

	"rotator/internal/rotation"
)

func TestDocuments_CatalogErrors(t *testing.T) {
	docs := NewDocuments()

	if _, err := docs.ReadCatalog(t.Context(), "1"); !errors.Is(err, rotation.ErrMissingCatalogField) {
		t.Fatalf("ReadCatalog(unset) error = %v, want ErrMissingCatalogField", err)
	}
	docs.SetCatalog("1", []string{})
	if _, err := docs.ReadCatalog(t.Context(), "1"); !errors.Is(err, rotation.ErrEmptyCatalog) {
		t.Fatalf("ReadCatalog(empty) error = %v, want ErrEmptyCatalog", err)
	}
	docs.SetCatalog("1", []string{"A", "B"})
	got, err := docs.ReadCatalog(t.Context(), "1")
	if err != nil || len(got) != 2 {
		t.Fatalf("ReadCatalog() = %v, %v", got, err)
	}
}

func TestDocuments_WriteIsolatesCopies(t *testing.T) {
	docs := NewDocuments()
	doc := MustParseDocument(`{"game":{"scenarioId":"A"}}`)
	if err := docs.WriteDocument(t.Context(), "2", doc); err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}
	if _, err := doc.WithScenarioID("B"); err != nil {
		t.Fatalf("WithScenarioID() error = %v", err)
	}

	stored, ok := docs.Document("2")
	if !ok {
		t.Fatal("Document(2) missing")
	}
	if id, _ := stored.ScenarioID(); id != "A" {
		t.Fatalf("stored ScenarioID() = %q, want A", id)
	}
}

func TestSequenceRandom(t *testing.T) {
	r := NewSequenceRandom(4, 1)

	if got := r.IntN(3); got != 1 {
		t.Fatalf("IntN(3) = %d, want 1", got)
	}
	if got := r.IntN(3); got != 1 {
		t.Fatalf("IntN(3) = %d, want 1", got)
	}
	if got := r.IntN(2); got != 0 {
		t.Fatalf("IntN(2) after wrap = %d, want 0", got)
	}
}
