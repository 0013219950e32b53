// Package lifecycle implements the document state machine. Every state
// change is a storage move between lifecycle prefixes, performed only by
// the Manager; prefix membership is the durable source of truth and the
// in-memory Document is a cache rebuildable by re-listing the store.
package lifecycle

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Status is a document's position in the lifecycle.
type Status string

const (
	StatusDiscovered       Status = "discovered"
	StatusClassified       Status = "classified"
	StatusPendingAmendment Status = "pending-amendment"
	StatusProcessing       Status = "processing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusArchived         Status = "archived"
)

// Lifecycle prefixes. Each status owns exactly one prefix.
const (
	PrefixUnprocessed      = "unprocessed/"
	PrefixClassified       = "classified/"
	PrefixPendingAmendment = "pending-amendment/"
	PrefixProcessing       = "processing/"
	PrefixCompleted        = "completed/"
	PrefixFailed           = "failed/"
	PrefixArchived         = "archived/"
)

var statusPrefix = map[Status]string{
	StatusDiscovered:       PrefixUnprocessed,
	StatusClassified:       PrefixClassified,
	StatusPendingAmendment: PrefixPendingAmendment,
	StatusProcessing:       PrefixProcessing,
	StatusCompleted:        PrefixCompleted,
	StatusFailed:           PrefixFailed,
	StatusArchived:         PrefixArchived,
}

// allowed enumerates every legal transition. failed → discovered is the
// operator reprocess path; everything else is driven by the scanner and
// the orchestrators.
var allowed = map[Status][]Status{
	StatusDiscovered:       {StatusClassified},
	StatusClassified:       {StatusProcessing, StatusPendingAmendment, StatusArchived},
	StatusPendingAmendment: {StatusClassified},
	StatusProcessing:       {StatusCompleted, StatusFailed},
	StatusCompleted:        {StatusArchived},
	StatusFailed:           {StatusDiscovered},
}

// PrefixFor returns the storage prefix owning a status.
func PrefixFor(status Status) string {
	return statusPrefix[status]
}

// StatusForKey derives a document's status from its storage key, or "" if
// the key sits under no lifecycle prefix.
func StatusForKey(key string) Status {
	for status, prefix := range statusPrefix {
		if strings.HasPrefix(key, prefix) {
			return status
		}
	}
	return ""
}

// DocumentID derives the stable document identifier from a storage key:
// the base file name without its extension. It is invariant across moves.
func DocumentID(key string) string {
	base := path.Base(key)
	base = strings.TrimSuffix(base, path.Ext(base))
	// Email sidecars carry a double extension (.email.json).
	return strings.TrimSuffix(base, ".email")
}

// ErrInvalidTransition marks a transition the state machine forbids. It is
// permanent: retrying the same request cannot succeed.
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

func canTransition(from, to Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document is one discovered unit of work. The Manager owns it once
// classified; Category and RefID are assigned at most once.
type Document struct {
	ID       string
	Key      string
	Status   Status
	Category string // classify.Category, set once by the classifier
	RefID    string // amendment target identifier, set for amendments
}

func (d *Document) String() string {
	return fmt.Sprintf("%s[%s @ %s]", d.ID, d.Category, d.Status)
}
