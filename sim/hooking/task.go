package hooking

// Positions at which transaction engines report the life of a transaction.
// TaskStart, TaskStep and TaskEnd are the matching HookCtx items.
var (
	HookPosTaskStart = &HookPos{Name: "TaskStart"}
	HookPosTaskStep  = &HookPos{Name: "TaskStep"}
	HookPosTaskEnd   = &HookPos{Name: "TaskEnd"}
)

// TimeTeller tells the current simulated time in seconds.
type TimeTeller interface {
	Now() float64
}

// TaskStart announces a transaction entering an engine.
type TaskStart struct {
	ID     string
	Kind   string // command, or SNOOP
	Family string
	Engine string
}

// TaskStep announces a phase reached by a transaction.
type TaskStep struct {
	ID    string
	Phase string
}

// TaskEnd announces a transaction leaving an engine.
type TaskEnd struct {
	ID string
}

// TaskFilter selects the transactions a tracer follows.
type TaskFilter func(t TaskStart) bool

// AllTasks follows every transaction.
func AllTasks(TaskStart) bool { return true }

// KindIs follows the transactions of the given kinds.
func KindIs(kinds ...string) TaskFilter {
	return func(t TaskStart) bool {
		for _, k := range kinds {
			if t.Kind == k {
				return true
			}
		}

		return false
	}
}

type inflight struct {
	kind  string
	start float64
}
