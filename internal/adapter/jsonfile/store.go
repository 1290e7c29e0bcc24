// Package jsonfile stores server config documents and scenario catalogs as
// JSON files laid out as <root>/server<index>/{config.json,list_scenarios.json}.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rotator/internal/rotation"

	"github.com/moby/sys/atomicwriter"
)

const (
	configFile  = "config.json"
	catalogFile = "list_scenarios.json"
	filePerm    = 0o644
)

var (
	_ rotation.ConfigStore   = (*Store)(nil)
	_ rotation.CatalogSource = (*Store)(nil)
)

// Store reads and writes per-server JSON documents under Root. Nothing
// guards against other processes editing the same files.
type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

// ServerDir returns the directory holding a server's documents.
func (s *Store) ServerDir(serverIndex string) string {
	return filepath.Join(s.Root, "server"+serverIndex)
}

func (s *Store) ConfigPath(serverIndex string) string {
	return filepath.Join(s.ServerDir(serverIndex), configFile)
}

func (s *Store) CatalogPath(serverIndex string) string {
	return filepath.Join(s.ServerDir(serverIndex), catalogFile)
}

func (s *Store) ReadDocument(_ context.Context, serverIndex string) (rotation.Document, error) {
	p := s.ConfigPath(serverIndex)
	data, err := os.ReadFile(p)
	if err != nil {
		return rotation.Document{}, fmt.Errorf("read %s: %w", p, err)
	}
	doc, err := rotation.ParseDocument(data)
	if err != nil {
		return rotation.Document{}, fmt.Errorf("%s: %w", p, err)
	}
	return doc, nil
}

// WriteDocument replaces the config file atomically so the game server
// never reads a half-written document.
func (s *Store) WriteDocument(_ context.Context, serverIndex string, doc rotation.Document) error {
	p := s.ConfigPath(serverIndex)
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	perm := os.FileMode(filePerm)
	if info, err := os.Stat(p); err == nil {
		perm = info.Mode().Perm()
	}
	if err := atomicwriter.WriteFile(p, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

type catalogDocument struct {
	ScenarioList *[]string `json:"scenarioList"`
}

func (s *Store) ReadCatalog(_ context.Context, serverIndex string) ([]string, error) {
	p := s.CatalogPath(serverIndex)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return parseCatalog(p, data)
}

func parseCatalog(path string, data []byte) ([]string, error) {
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.ScenarioList == nil {
		return nil, fmt.Errorf("%s: %w", path, rotation.ErrMissingCatalogField)
	}
	list := *doc.ScenarioList
	if len(list) == 0 {
		return nil, fmt.Errorf("%s: %w", path, rotation.ErrEmptyCatalog)
	}
	for i, id := range list {
		if id == "" {
			return nil, fmt.Errorf("%s: scenarioList[%d] is empty", path, i)
		}
	}
	return list, nil
}
