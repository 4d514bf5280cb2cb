package datarecording

import (
	"github.com/sarchlab/tlmbus/checker"
	"github.com/sarchlab/tlmbus/fsm"
	"github.com/sarchlab/tlmbus/sim/hooking"
)

const (
	transactionTable = "transactions"
	violationTable   = "violations"
)

type transactionEntry struct {
	ID        string
	Engine    string
	Kind      string
	Family    string
	TxnID     uint32
	Address   uint64
	Beats     int
	StartTime float64
	EndTime   float64
}

type violationEntry struct {
	Time      float64
	Channel   string
	Lane      string
	Phase     string
	Direction string
	TxnID     uint32
	Address   uint64
	Message   string
}

type openTransaction struct {
	entry transactionEntry
}

// TransactionRecorder records the transactions of protocol engines and the
// violations found by checkers.
type TransactionRecorder struct {
	recorder   DataRecorder
	timeTeller hooking.TimeTeller
	open       map[string]*openTransaction
}

// NewTransactionRecorder creates the tables and returns a recorder. Attach it
// to engines with AcceptHook and to checkers as a Reporter.
func NewTransactionRecorder(
	r DataRecorder,
	timeTeller hooking.TimeTeller,
) *TransactionRecorder {
	r.CreateTable(transactionTable, transactionEntry{})
	r.CreateTable(violationTable, violationEntry{})

	return &TransactionRecorder{
		recorder:   r,
		timeTeller: timeTeller,
		open:       make(map[string]*openTransaction),
	}
}

// Func records the start and the end of transactions.
func (r *TransactionRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case hooking.HookPosTaskStart:
		r.start(ctx)
	case hooking.HookPosTaskEnd:
		r.end(ctx)
	}
}

func (r *TransactionRecorder) start(ctx hooking.HookCtx) {
	task, ok := ctx.Item.(hooking.TaskStart)
	if !ok {
		return
	}

	e := transactionEntry{
		ID:        task.ID,
		Engine:    task.Engine,
		Kind:      task.Kind,
		Family:    task.Family,
		StartTime: r.timeTeller.Now(),
	}

	if h, ok := ctx.Detail.(*fsm.Handle); ok {
		e.TxnID = h.Payload.ID
		e.Address = h.Payload.Address
		e.Beats = h.Payload.Beats()
	}

	r.open[task.ID] = &openTransaction{entry: e}
}

func (r *TransactionRecorder) end(ctx hooking.HookCtx) {
	task, ok := ctx.Item.(hooking.TaskEnd)
	if !ok {
		return
	}

	t, found := r.open[task.ID]
	if !found {
		return
	}

	delete(r.open, task.ID)

	t.entry.EndTime = r.timeTeller.Now()
	r.recorder.InsertData(transactionTable, t.entry)
}

// Report records a violation.
func (r *TransactionRecorder) Report(v checker.Violation) {
	r.recorder.InsertData(violationTable, violationEntry{
		Time:      v.Time,
		Channel:   v.Channel.String(),
		Lane:      v.Lane.String(),
		Phase:     v.Phase.String(),
		Direction: v.Direction.String(),
		TxnID:     v.ID,
		Address:   v.Address,
		Message:   v.Message,
	})
}

// Open returns the number of transactions that started but did not end.
func (r *TransactionRecorder) Open() int {
	return len(r.open)
}
