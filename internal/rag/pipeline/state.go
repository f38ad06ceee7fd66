package pipeline

import (
	"time"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

type State string

const (
	StateSubmitted  State = "submitted"
	StateAnalyzing  State = "analyzing"
	StateRetrieving State = "retrieving"
	StateRanking    State = "ranking"
	StateFusing     State = "fusing"
	StateGenerating State = "generating"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// PollResult reports a task. Exactly one of Answer and Error is set once the task is terminal.
type PollResult struct {
	TaskID      string                     `json:"task_id"`
	Status      Status                     `json:"status"`
	State       State                      `json:"state"`
	Answer      *graphrag.StructuredAnswer `json:"answer,omitempty"`
	Error       string                     `json:"error,omitempty"`
	SubmittedAt time.Time                  `json:"submitted_at"`
	FinishedAt  *time.Time                 `json:"finished_at,omitempty"`
}
