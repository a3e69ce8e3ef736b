package wizard

import (
	"strings"

	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/service/session"
)

// Steps of the add-instrument workflow, in order, and of the amount edit.
const (
	StepName            session.Step = "name"
	StepModel           session.Step = "model"
	StepManufacturer    session.Step = "manufacturer"
	StepQuantity        session.Step = "quantity"
	StepImage           session.Step = "image_url"
	StepCharacteristics session.Step = "characteristics"

	StepAwaitingAmount session.Step = "awaiting_amount"
)

// field describes one add-instrument step. An empty next means the record is
// saved once the step completes.
type field struct {
	step     session.Step
	prev     session.Step
	next     session.Step
	optional bool
	set      func(d *models.Draft, value string) error
	clear    func(d *models.Draft)
}

var flow = []field{
	{
		step: StepName,
		next: StepModel,
		set: func(d *models.Draft, v string) error {
			if err := validName(v); err != nil {
				return err
			}
			d.Name = strings.TrimSpace(v)
			return nil
		},
	},
	{
		step:     StepModel,
		prev:     StepName,
		next:     StepManufacturer,
		optional: true,
		set:      func(d *models.Draft, v string) error { d.Model = v; return nil },
		clear:    func(d *models.Draft) { d.Model = "" },
	},
	{
		step:     StepManufacturer,
		prev:     StepModel,
		next:     StepQuantity,
		optional: true,
		set:      func(d *models.Draft, v string) error { d.Manufacturer = v; return nil },
		clear:    func(d *models.Draft) { d.Manufacturer = "" },
	},
	{
		step: StepQuantity,
		prev: StepManufacturer,
		next: StepImage,
		set: func(d *models.Draft, v string) error {
			q, err := ParseQuantity(v)
			if err != nil {
				return err
			}
			d.Quantity = q
			d.HasQuantity = true
			return nil
		},
	},
	{
		step:     StepImage,
		prev:     StepQuantity,
		next:     StepCharacteristics,
		optional: true,
		set: func(d *models.Draft, v string) error {
			if err := validURL(v); err != nil {
				return err
			}
			d.ImageURL = strings.TrimSpace(v)
			d.PhotoFileID = ""
			return nil
		},
		clear: func(d *models.Draft) {
			d.ImageURL = ""
			d.PhotoFileID = ""
		},
	},
	{
		step:     StepCharacteristics,
		prev:     StepImage,
		optional: true,
		set:      func(d *models.Draft, v string) error { d.Characteristics = v; return nil },
		clear:    func(d *models.Draft) { d.Characteristics = "" },
	},
}

// IsAddStep reports whether step belongs to the add-instrument workflow.
func IsAddStep(step session.Step) bool {
	for _, f := range flow {
		if f.step == step {
			return true
		}
	}
	return false
}

// Optional reports whether step may be skipped.
func Optional(step session.Step) bool {
	for _, f := range flow {
		if f.step == step {
			return f.optional
		}
	}
	return false
}

// HasPrevious reports whether back navigation is possible from step.
func HasPrevious(step session.Step) bool {
	for _, f := range flow {
		if f.step == step {
			return f.prev != ""
		}
	}
	return false
}

type transitionKey struct {
	step session.Step
	kind ActionKind
}

type transition func(e *Engine, c call) Outcome

// transitions is the whole state machine: one entry per (step, action kind).
// A missing entry means the action is not supported at that step.
var transitions = buildTransitions()

func buildTransitions() map[transitionKey]transition {
	table := make(map[transitionKey]transition)

	for _, f := range flow {
		f := f
		table[transitionKey{f.step, ActionCancel}] = cancel
		table[transitionKey{f.step, ActionSubmit}] = func(e *Engine, c call) Outcome {
			draft := c.state.Draft
			if err := f.set(&draft, c.action.Value); err != nil {
				return invalid(c.state, err)
			}
			return e.advance(c, f.next, draft)
		}

		if f.optional {
			table[transitionKey{f.step, ActionSkip}] = func(e *Engine, c call) Outcome {
				draft := c.state.Draft
				f.clear(&draft)
				return e.advance(c, f.next, draft)
			}
		} else {
			table[transitionKey{f.step, ActionSkip}] = reject(ErrSkipNotAllowed)
		}

		if f.prev != "" {
			table[transitionKey{f.step, ActionBack}] = func(e *Engine, c call) Outcome {
				return e.moveTo(c, f.prev, c.state.Draft)
			}
		} else {
			table[transitionKey{f.step, ActionBack}] = reject(ErrNoPreviousStep)
		}

		table[transitionKey{f.step, ActionPhoto}] = reject(ErrPhotoNotExpected)
	}

	table[transitionKey{StepImage, ActionPhoto}] = func(e *Engine, c call) Outcome {
		draft := c.state.Draft
		draft.PhotoFileID = c.action.Value
		draft.ImageURL = ""
		return e.advance(c, StepCharacteristics, draft)
	}

	table[transitionKey{StepAwaitingAmount, ActionSubmit}] = submitAmount
	table[transitionKey{StepAwaitingAmount, ActionCancel}] = cancel
	table[transitionKey{StepAwaitingAmount, ActionBack}] = cancel
	table[transitionKey{StepAwaitingAmount, ActionSkip}] = reject(ErrSkipNotAllowed)
	table[transitionKey{StepAwaitingAmount, ActionPhoto}] = reject(ErrPhotoNotExpected)

	return table
}

func reject(problem error) transition {
	return func(_ *Engine, c call) Outcome {
		return invalid(c.state, problem)
	}
}

func cancel(e *Engine, c call) Outcome {
	e.sessions.End(c.userID)
	return Outcome{Kind: OutcomeCancelled, Workflow: c.state.Kind, Step: c.state.Step, Draft: c.state.Draft, Target: c.state.Target}
}
