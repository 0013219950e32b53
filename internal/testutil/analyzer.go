package testutil

import (
	"context"
	"fmt"
	"sync"
)

// Call records one analyzer invocation.
type Call struct {
	TaskID  string
	Context string
}

// ScriptedAnalyzer is an analysis.Analyzer test double. Responses map task
// IDs to canned answers; queued errors are consumed one per call before
// the response is returned. Safe for concurrent use.
type ScriptedAnalyzer struct {
	mu        sync.Mutex
	Responses map[string]string
	// Respond, when set, is consulted before Responses and may answer
	// based on the assembled context, not just the task id.
	Respond  func(taskID, contextText string) (string, bool)
	errQueue map[string][]error
	calls    []Call
}

// NewScriptedAnalyzer creates a double answering from responses. Tasks
// without an entry get a synthetic "output of <task>" answer.
func NewScriptedAnalyzer(responses map[string]string) *ScriptedAnalyzer {
	if responses == nil {
		responses = map[string]string{}
	}
	return &ScriptedAnalyzer{
		Responses: responses,
		errQueue:  map[string][]error{},
	}
}

// FailNTimes queues n copies of err for the task; the n+1th call succeeds.
func (a *ScriptedAnalyzer) FailNTimes(taskID string, n int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < n; i++ {
		a.errQueue[taskID] = append(a.errQueue[taskID], err)
	}
}

func (a *ScriptedAnalyzer) Invoke(ctx context.Context, taskID, contextText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, Call{TaskID: taskID, Context: contextText})
	if queue := a.errQueue[taskID]; len(queue) > 0 {
		err := queue[0]
		a.errQueue[taskID] = queue[1:]
		return "", err
	}
	if a.Respond != nil {
		if answer, ok := a.Respond(taskID, contextText); ok {
			return answer, nil
		}
	}
	if answer, ok := a.Responses[taskID]; ok {
		return answer, nil
	}
	return fmt.Sprintf("output of %s", taskID), nil
}

// Calls returns a copy of every recorded invocation in order.
func (a *ScriptedAnalyzer) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallsFor returns the recorded invocations of one task.
func (a *ScriptedAnalyzer) CallsFor(taskID string) []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Call
	for _, c := range a.calls {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out
}
