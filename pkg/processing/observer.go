package processing

// Observer is notified while a run progresses. Implementations must not
// modify the results they are handed.
type Observer interface {
	RunStarted(r *RunResult)
	StepStarted(r *RunResult, index int, step string)
	StepFinished(r *RunResult, sr StepResult)
	RunFinished(r *RunResult)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) RunStarted(*RunResult) {}

func (NopObserver) StepStarted(*RunResult, int, string) {}

func (NopObserver) StepFinished(*RunResult, StepResult) {}

func (NopObserver) RunFinished(*RunResult) {}
