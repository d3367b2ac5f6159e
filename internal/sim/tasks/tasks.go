package tasks

type Kind string

const (
	KindInsert     Kind = "INSERT"
	KindTransform  Kind = "TRANSFORM"
	KindSwitchWork Kind = "SWITCH_WORK"
	KindGenerate   Kind = "GENERATE"
	KindSettle     Kind = "SETTLE"
	KindShrink     Kind = "SHRINK"
	KindCollect    Kind = "COLLECT"
)

type waitKind uint8

const (
	waitTick waitKind = iota
	waitFor
	waitUntil
	waitDone
)

// Wait is the suspension a task returns from Step. The scheduler consults it once per tick
// and resumes the task only when it is satisfied.
type Wait struct {
	kind  waitKind
	left  float64
	until func() bool
}

// Yield resumes the task on the next tick.
func Yield() Wait { return Wait{kind: waitTick} }

// Sleep resumes the task once at least seconds of simulated time have elapsed.
func Sleep(seconds float64) Wait { return Wait{kind: waitFor, left: seconds} }

// Until resumes the task on the first tick where pred reports true.
func Until(pred func() bool) Wait {
	if pred == nil {
		return Yield()
	}
	return Wait{kind: waitUntil, until: pred}
}

// Done finishes the task.
func Done() Wait { return Wait{kind: waitDone} }

func (w Wait) IsDone() bool { return w.kind == waitDone }

func (w Wait) String() string {
	switch w.kind {
	case waitTick:
		return "tick"
	case waitFor:
		return "for"
	case waitUntil:
		return "until"
	default:
		return "done"
	}
}

// Task is a resumable unit of simulated work. Step runs until the next suspension point.
type Task interface {
	Step(dt float64) Wait
}

// StepFunc adapts a func to Task.
type StepFunc func(dt float64) Wait

func (f StepFunc) Step(dt float64) Wait { return f(dt) }

// Stopper is implemented by tasks that must undo bindings when cancelled from outside.
type Stopper interface {
	Stop()
}

// Key identifies one task slot. An owner has at most one task per slot.
type Key struct {
	Owner string
	Slot  string
}
