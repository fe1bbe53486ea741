package faqedit

// Stage is the cursor of a two-step add or edit conversation. Stages only
// move forward: AwaitingQuestion, then AwaitingAnswer, then the session ends.
type Stage int

const (
	AwaitingQuestion Stage = iota
	AwaitingAnswer
)

func (s Stage) String() string {
	switch s {
	case AwaitingQuestion:
		return "awaiting_question"
	case AwaitingAnswer:
		return "awaiting_answer"
	default:
		return "unknown"
	}
}

// AddSession tracks a responder who is creating a new FAQ item.
type AddSession struct {
	Stage Stage

	// Question is captured once the first step completes.
	Question string
}

// EditSession tracks a responder who is rewriting an existing FAQ item.
type EditSession struct {
	Stage Stage
	FAQID int64

	// NewQuestion is the replacement question captured by the first step.
	// Empty until then.
	NewQuestion string
}

// LockTable maps FAQ item ids to the responder currently editing them.
// It is not safe for concurrent use; Manager guards it with its own mutex.
type LockTable struct {
	holders map[int64]int64
}

// NewLockTable returns an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{holders: make(map[int64]int64)}
}

// TryAcquire locks faqID for responder. It succeeds when the item is free
// or already held by the same responder.
func (t *LockTable) TryAcquire(faqID, responder int64) bool {
	if holder, ok := t.holders[faqID]; ok && holder != responder {
		return false
	}
	t.holders[faqID] = responder
	return true
}

// Release unlocks faqID if responder holds it and reports whether it did.
func (t *LockTable) Release(faqID, responder int64) bool {
	if holder, ok := t.holders[faqID]; !ok || holder != responder {
		return false
	}
	delete(t.holders, faqID)
	return true
}

// Holder returns the responder holding faqID.
func (t *LockTable) Holder(faqID int64) (int64, bool) {
	holder, ok := t.holders[faqID]
	return holder, ok
}

// Len returns the number of locked items.
func (t *LockTable) Len() int {
	return len(t.holders)
}
