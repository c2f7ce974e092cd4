package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
)

// Document is the single JSON document persisted per workspace (spec.md
// §6), generalized from the teacher's config.Store — which persists
// only provider/theme settings — to the engine's full thread state.
type Document struct {
	Threads map[string]engine.Thread `json:"threads"`
	SavedAt time.Time                `json:"saved_at"`
}

// Snapshot reads every thread out of store for persistence.
func Snapshot(store *engine.Store) Document {
	ids := store.ThreadIDs()
	doc := Document{Threads: make(map[string]engine.Thread, len(ids)), SavedAt: time.Now()}
	for _, id := range ids {
		if t, ok := store.Thread(id); ok {
			doc.Threads[id] = t
		}
	}
	return doc
}

// Persister periodically writes a Document to disk. Grounded on the
// teacher's config.Store.Save, hardened with the temp-file-plus-rename
// pattern spec.md §6 calls for so a crash mid-write never leaves a
// truncated document behind — the teacher's settings.json is small
// enough that this never bit it, but a multi-thread document is not.
type Persister struct {
	path string
}

func NewPersister(workspaceRoot string) *Persister {
	return &Persister{path: filepath.Join(workspaceRoot, ".aegis", "state.json")}
}

func (p *Persister) Save(doc Document) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state document: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state document: %w", err)
	}
	return os.Rename(tmp, p.path)
}

func (p *Persister) Load() (Document, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse state document: %w", err)
	}
	return doc, nil
}
