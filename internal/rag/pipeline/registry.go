package pipeline

import (
	"sync"
	"time"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

type taskEntry struct {
	mu          sync.Mutex
	id          string
	state       State
	answer      *graphrag.StructuredAnswer
	err         error
	submittedAt time.Time
	finishedAt  time.Time
}

func (t *taskEntry) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state = s
}

// finish records the terminal outcome once; later calls are ignored.
func (t *taskEntry) finish(ans graphrag.StructuredAnswer, err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.finishedAt = at
	if err != nil {
		t.state = StateFailed
		t.err = err
		return
	}
	t.state = StateDone
	t.answer = &ans
}

func (t *taskEntry) snapshot() PollResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := PollResult{TaskID: t.id, State: t.state, SubmittedAt: t.submittedAt}
	switch t.state {
	case StateDone:
		out.Status = StatusDone
		a := *t.answer
		out.Answer = &a
	case StateFailed:
		out.Status = StatusFailed
		out.Error = t.err.Error()
	default:
		out.Status = StatusRunning
	}
	if !t.finishedAt.IsZero() {
		f := t.finishedAt
		out.FinishedAt = &f
	}
	return out
}

func (t *taskEntry) expired(now time.Time, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Terminal() && now.Sub(t.finishedAt) > ttl
}

// registry is keyed by task id; lookups of one id never block inserts of another.
type registry struct {
	tasks sync.Map
	ttl   time.Duration
	now   func() time.Time
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{ttl: ttl, now: time.Now}
}

func (r *registry) add(id string) *taskEntry {
	e := &taskEntry{id: id, state: StateSubmitted, submittedAt: r.now()}
	r.tasks.Store(id, e)
	return e
}

func (r *registry) get(id string) (*taskEntry, bool) {
	v, ok := r.tasks.Load(id)
	if !ok {
		return nil, false
	}
	e := v.(*taskEntry)
	if e.expired(r.now(), r.ttl) {
		r.tasks.Delete(id)
		return nil, false
	}
	return e, true
}

func (r *registry) poll(id string) (PollResult, error) {
	e, ok := r.get(id)
	if !ok {
		return PollResult{}, ragerr.NotFoundf("pipeline.poll", "task %s not found or expired", id)
	}
	return e.snapshot(), nil
}

// sweep drops finished tasks older than the TTL and reports how many were removed.
func (r *registry) sweep() int {
	now := r.now()
	n := 0
	r.tasks.Range(func(k, v any) bool {
		if v.(*taskEntry).expired(now, r.ttl) {
			r.tasks.Delete(k)
			n++
		}
		return true
	})
	return n
}
