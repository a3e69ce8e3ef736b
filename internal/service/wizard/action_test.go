package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]Action{
		"/skip":              Skip(),
		"/skip@toolstockbot": Skip(),
		"  SKIP ":            Skip(),
		"/back":              Back(),
		"Back":               Back(),
		"/cancel":            Cancel(),
		"cancel":             Cancel(),
		"  Drill X ":         Submit("Drill X"),
		"/start":             Submit("/start"),
		"skipper":            Submit("skipper"),
	}

	for input, want := range cases {
		assert.Equal(t, want, Classify(input), input)
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity(" 2,5 ")
	assert.NoError(t, err)
	assert.Equal(t, 2.5, q)

	q, err = ParseQuantity("0")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, q)

	_, err = ParseQuantity("Inf")
	assert.ErrorIs(t, err, ErrNotANumber)

	_, err = ParseQuantity("-0.5")
	assert.ErrorIs(t, err, ErrNegative)
}

func TestTransitionTableCoversEveryStep(t *testing.T) {
	steps := []Action{Submit("x"), Skip(), Back(), Cancel(), Photo("f")}
	for _, f := range flow {
		for _, a := range steps {
			_, ok := transitions[transitionKey{f.step, a.Kind}]
			assert.True(t, ok, "%s/%s", f.step, a.Kind)
		}
	}
	assert.True(t, Optional(StepModel))
	assert.False(t, Optional(StepQuantity))
	assert.False(t, HasPrevious(StepName))
	assert.True(t, IsAddStep(StepImage))
	assert.False(t, IsAddStep(StepAwaitingAmount))
}
