package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"rotator/internal/rotation"
)

var (
	_ rotation.ConfigStore   = (*Documents)(nil)
	_ rotation.CatalogSource = (*Documents)(nil)
)

// Documents is an in-memory config store and catalog source keyed by
// server index.
type Documents struct {
	CallRecorder
	mu       sync.Mutex
	catalogs map[string][]string
	docs     map[string]rotation.Document

	ReadCatalogErr   func(ctx context.Context, index string) error
	ReadDocumentErr  func(ctx context.Context, index string) error
	WriteDocumentErr func(ctx context.Context, index string, doc rotation.Document) error
}

func NewDocuments() *Documents {
	return &Documents{
		catalogs: make(map[string][]string),
		docs:     make(map[string]rotation.Document),
	}
}

// SetCatalog stores the scenario list for index. A nil list behaves like a
// document without scenarioList.
func (d *Documents) SetCatalog(index string, ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ids == nil {
		delete(d.catalogs, index)
		return
	}
	d.catalogs[index] = slices.Clone(ids)
}

// MustParseDocument parses a config document literal and panics when it is
// not a JSON object.
func MustParseDocument(s string) rotation.Document {
	doc, err := rotation.ParseDocument([]byte(s))
	if err != nil {
		panic(err)
	}
	return doc
}

// SetDocument stores the config document for index.
func (d *Documents) SetDocument(index string, doc rotation.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[index] = doc.Clone()
}

// Document returns the stored config document for index.
func (d *Documents) Document(index string) (rotation.Document, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[index]
	return doc.Clone(), ok
}

func (d *Documents) ReadCatalog(ctx context.Context, index string) ([]string, error) {
	d.record("ReadCatalog", index)
	if d.ReadCatalogErr != nil {
		if err := d.ReadCatalogErr(ctx, index); err != nil {
			return nil, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, ok := d.catalogs[index]
	if !ok {
		return nil, rotation.ErrMissingCatalogField
	}
	if len(ids) == 0 {
		return nil, rotation.ErrEmptyCatalog
	}
	return slices.Clone(ids), nil
}

func (d *Documents) ReadDocument(ctx context.Context, index string) (rotation.Document, error) {
	d.record("ReadDocument", index)
	if d.ReadDocumentErr != nil {
		if err := d.ReadDocumentErr(ctx, index); err != nil {
			return rotation.Document{}, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[index]
	if !ok {
		return rotation.Document{}, fmt.Errorf("config document for server %s not found", index)
	}
	return doc.Clone(), nil
}

func (d *Documents) WriteDocument(ctx context.Context, index string, doc rotation.Document) error {
	d.record("WriteDocument", index, doc)
	if d.WriteDocumentErr != nil {
		if err := d.WriteDocumentErr(ctx, index, doc); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[index] = doc.Clone()
	return nil
}
