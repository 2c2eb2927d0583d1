package pantry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Transitions(t *testing.T) {
	obs := &recordingObserver{}
	run := newRun(OperationGenerate, "t1", obs)

	run.advance(StateGenerating)
	run.advance(StateAssessing)
	run.advance(StateCommitting)
	run.advance(StateDone)

	assert.Equal(t, StateDone, run.current())
	assert.Equal(t, []string{"idle", "generating", "assessing", "committing", "done"}, run.path())
	assert.Equal(t, []string{"generate:done"}, obs.runs)
}

func TestRun_InvalidTransitionPanics(t *testing.T) {
	run := newRun(OperationConfirm, "t1", nil)

	assert.Panics(t, func() { run.advance(StateAssessing) })
	assert.Equal(t, StateIdle, run.current())
	assert.Equal(t, []string{"idle"}, run.path())
}

func TestRun_Fail(t *testing.T) {
	obs := &recordingObserver{}
	run := newRun(OperationGenerate, "t1", obs)
	run.advance(StateGenerating)
	cause := errors.New("boom")

	assert.Same(t, cause, run.fail(cause))
	assert.Equal(t, StateFailed, run.current())
	assert.Same(t, cause, run.cause())
	assert.Equal(t, []string{"idle", "generating", "failed"}, run.path())

	// Terminal states ignore further failures
	run.fail(errors.New("again"))
	assert.Same(t, cause, run.cause())
	assert.Equal(t, []string{"generate:failed"}, obs.runs)
	assert.Equal(t, []string{"generate:idle->generating", "generate:generating->failed"}, obs.transitions)
}
