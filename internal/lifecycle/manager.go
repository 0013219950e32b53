package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cbrane/nexus/internal/store"
)

// ErrGone is returned when the document to move no longer exists at its
// recorded key: a concurrent actor won the claim. Callers no-op on it.
var ErrGone = fmt.Errorf("lifecycle: document gone (claimed elsewhere)")

// Manager is the only component authorized to move documents between
// lifecycle prefixes. All other components read state and request
// transitions; none touches the store directly.
type Manager struct {
	objects store.Store
	logger  *slog.Logger
}

// NewManager creates a Manager over the given object store.
func NewManager(objects store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{objects: objects, logger: logger}
}

// Claim takes ownership of a key sitting under unprocessed/ by moving it
// to classified/. Exactly one concurrent claimer succeeds; the losers get
// ErrGone. The returned Document has no category yet.
func (m *Manager) Claim(ctx context.Context, key string) (*Document, error) {
	if StatusForKey(key) != StatusDiscovered {
		return nil, fmt.Errorf("%w: claim of %s (not under %s)", ErrInvalidTransition, key, PrefixUnprocessed)
	}
	newKey, err := m.objects.Move(ctx, key, PrefixClassified)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrGone
		}
		return nil, fmt.Errorf("lifecycle: claim %s: %w", key, err)
	}
	doc := &Document{
		ID:     DocumentID(key),
		Key:    newKey,
		Status: StatusClassified,
	}
	m.logger.Debug("claimed document", "id", doc.ID, "key", newKey)
	return doc, nil
}

// Resume adopts a document found under a non-unprocessed prefix after a
// crash or requeue. No move happens; the prefix already encodes the state.
func (m *Manager) Resume(key string) (*Document, error) {
	status := StatusForKey(key)
	if status == "" || status == StatusDiscovered {
		return nil, fmt.Errorf("lifecycle: resume %s: key not under a resumable prefix", key)
	}
	return &Document{ID: DocumentID(key), Key: key, Status: status}, nil
}

// Transition moves doc to the given status. The document is not considered
// to have changed state until the underlying move succeeds.
func (m *Manager) Transition(ctx context.Context, doc *Document, to Status) error {
	if !canTransition(doc.Status, to) {
		return fmt.Errorf("%w: %s -> %s (document %s)", ErrInvalidTransition, doc.Status, to, doc.ID)
	}
	newKey, err := m.objects.Move(ctx, doc.Key, PrefixFor(to))
	if err != nil {
		if store.IsNotFound(err) {
			return ErrGone
		}
		return fmt.Errorf("lifecycle: transition %s %s -> %s: %w", doc.ID, doc.Status, to, err)
	}
	m.logger.Debug("document transitioned",
		"id", doc.ID, "from", doc.Status, "to", to, "key", newKey)
	doc.Key = newKey
	doc.Status = to
	return nil
}

// Reprocess is the operator path out of failed/: the document returns to
// unprocessed/ with its report row untouched, so completed sections are
// preserved and the pipeline resumes instead of restarting.
func (m *Manager) Reprocess(ctx context.Context, documentID string) (string, error) {
	var found string
	err := m.objects.List(ctx, PrefixFailed, func(key string) error {
		if DocumentID(key) == documentID {
			found = key
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("lifecycle: list failed documents: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("lifecycle: reprocess %s: %w", documentID, store.ErrNotFound)
	}
	doc := &Document{ID: documentID, Key: found, Status: StatusFailed}
	if err := m.Transition(ctx, doc, StatusDiscovered); err != nil {
		return "", err
	}
	m.logger.Info("document re-deposited for reprocessing", "id", documentID, "key", doc.Key)
	return doc.Key, nil
}
