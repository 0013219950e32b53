// Package report implements the analysis task pipeline: the ordered task
// catalog, the accumulated Report, its persistence, and the orchestrator
// that drives a new-submission document through every task.
package report

// State is the lifecycle of a Report.
type State string

const (
	StateInProgress State = "in-progress"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Section is one task's output. Sections are stored in execution order.
type Section struct {
	Task string `json:"task"`
	Text string `json:"text"`
}

// Report is the accumulated pipeline output for one document. It is
// mutated only by the orchestrator appending one section at a time, and
// persisted after every append so a crash loses at most the in-flight
// task's output.
type Report struct {
	DocumentID string    `json:"document_id"`
	State      State     `json:"state"`
	Sections   []Section `json:"sections"`
	CreatedAt  int64     `json:"created_at"`
	UpdatedAt  int64     `json:"updated_at"`
}

// Has reports whether the named task already produced a section.
func (r *Report) Has(task string) bool {
	for _, s := range r.Sections {
		if s.Task == task {
			return true
		}
	}
	return false
}

// SectionText returns the named task's output, or "" if absent.
func (r *Report) SectionText(task string) (string, bool) {
	for _, s := range r.Sections {
		if s.Task == task {
			return s.Text, true
		}
	}
	return "", false
}

// CompletedTasks returns the names of all completed tasks in execution
// order.
func (r *Report) CompletedTasks() []string {
	names := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		names[i] = s.Task
	}
	return names
}
