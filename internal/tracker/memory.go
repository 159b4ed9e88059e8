package tracker

import (
	"maps"
	"strings"

	"go.uber.org/zap"

	"axis-blue-backend/internal/localstate"
)

// SetStoreMemory stores a free-text note for a store name. A blank note
// clears it.
func (t *Tracker) SetStoreMemory(name, note string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "store name is required")
	}
	note = strings.TrimSpace(note)

	t.mu.Lock()
	defer t.mu.Unlock()

	if note == "" {
		delete(t.memory, name)
	} else {
		t.memory[name] = note
	}
	if err := t.storage.Save(localstate.KeyStoreMemory, t.memory); err != nil {
		t.logger.Error("failed to persist store memory", zap.Error(err))
		return err
	}
	return nil
}

// StoreMemory returns the note for a store name.
func (t *Tracker) StoreMemory(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	note, ok := t.memory[strings.TrimSpace(name)]
	return note, ok
}

// StoreMemories returns every stored note keyed by store name.
func (t *Tracker) StoreMemories() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return maps.Clone(t.memory)
}
