// Package wizard drives the guided workflows: adding an instrument step by
// step and editing an instrument's amount. Input is classified into an
// Action once and applied through a transition table keyed on the current
// step and the action kind.
package wizard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/metrics"
	"github.com/mamadbah2/toolstock/internal/service/durable"
	"github.com/mamadbah2/toolstock/internal/service/session"
)

// Inventory is the mutation surface the wizard needs.
type Inventory interface {
	Table() inventory.Reader
	Add(ctx context.Context, record models.Instrument) (durable.Result, error)
	SetQuantity(ctx context.Context, number int, quantity float64) (durable.Result, error)
}

// ImageSaver stores a chat photo as the image of a saved instrument.
type ImageSaver interface {
	SavePhoto(ctx context.Context, number int, fileID string) error
}

// ErrNoImageSaver is reported when a photo was collected but cannot be stored.
var ErrNoImageSaver = errors.New("photo storage is not configured")

// OutcomeKind classifies the result of one action.
type OutcomeKind int

const (
	// OutcomePrompt means the workflow moved and Step should be prompted.
	OutcomePrompt OutcomeKind = iota
	// OutcomeInvalid means the input was rejected; Step is unchanged.
	OutcomeInvalid
	OutcomeSaved
	OutcomeUpdated
	OutcomeCancelled
	// OutcomeFailed means a mutation could not be persisted; the session is gone.
	OutcomeFailed
	OutcomeNotFound
	OutcomeNoSession
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePrompt:
		return "prompt"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSaved:
		return "saved"
	case OutcomeUpdated:
		return "updated"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNoSession:
		return "no_session"
	}
	return "unknown"
}

// Outcome is what the presentation layer renders after an action.
type Outcome struct {
	Kind     OutcomeKind
	Workflow session.Kind
	Step     session.Step
	Draft    models.Draft
	Problem  error
	// Target is the instrument number of an amount edit.
	Target   int
	Record   models.Instrument
	Previous float64
	Synced   bool
	ImageErr error
	Err      error
}

// Engine runs workflows against the session store and the inventory.
type Engine struct {
	sessions *session.Store
	store    Inventory
	images   ImageSaver
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEngine wires an engine. images may be nil.
func NewEngine(sessions *session.Store, store Inventory, images ImageSaver, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{sessions: sessions, store: store, images: images, metrics: m, logger: logger}
}

type call struct {
	ctx    context.Context
	userID int64
	state  session.State
	action Action
}

// Start begins the add-instrument workflow, replacing any workflow in progress.
func (e *Engine) Start(userID int64) Outcome {
	state := e.sessions.Begin(userID, session.KindAddInstrument, StepName)
	e.logger.Info("add workflow started", zap.Int64("user_id", userID))
	return e.done(Outcome{Kind: OutcomePrompt, Workflow: state.Kind, Step: state.Step})
}

// Status returns the user's workflow state, if any.
func (e *Engine) Status(userID int64) (session.State, bool) {
	return e.sessions.Get(userID)
}

// Current re-renders the prompt of the user's current step.
func (e *Engine) Current(userID int64) Outcome {
	state, ok := e.sessions.Get(userID)
	if !ok {
		return Outcome{Kind: OutcomeNoSession}
	}
	return Outcome{Kind: OutcomePrompt, Workflow: state.Kind, Step: state.Step, Draft: state.Draft, Target: state.Target}
}

// Handle applies one action to the user's active workflow.
func (e *Engine) Handle(ctx context.Context, userID int64, action Action) Outcome {
	state, ok := e.sessions.Get(userID)
	if !ok {
		return e.done(Outcome{Kind: OutcomeNoSession})
	}

	if action.Step != "" && action.Step != state.Step {
		return e.done(invalid(state, ErrStaleAction))
	}

	next, ok := transitions[transitionKey{state.Step, action.Kind}]
	if !ok {
		return e.done(invalid(state, ErrUnsupported))
	}

	out := next(e, call{ctx: ctx, userID: userID, state: state, action: action})
	e.logger.Debug("workflow action handled",
		zap.Int64("user_id", userID),
		zap.String("step", string(state.Step)),
		zap.String("action", action.Kind.String()),
		zap.String("outcome", out.Kind.String()))
	return e.done(out)
}

func (e *Engine) done(out Outcome) Outcome {
	e.metrics.Outcome(out.Kind.String())
	return out
}

func invalid(state session.State, problem error) Outcome {
	return Outcome{
		Kind:     OutcomeInvalid,
		Workflow: state.Kind,
		Step:     state.Step,
		Draft:    state.Draft,
		Target:   state.Target,
		Problem:  problem,
	}
}

// advance moves forward, saving the record when there is no next step.
func (e *Engine) advance(c call, next session.Step, draft models.Draft) Outcome {
	if next == "" {
		return e.save(c, draft)
	}
	return e.moveTo(c, next, draft)
}

func (e *Engine) moveTo(c call, step session.Step, draft models.Draft) Outcome {
	state, err := e.sessions.Advance(c.userID, step, draft)
	if err != nil {
		// expired between Get and Advance
		return Outcome{Kind: OutcomeNoSession}
	}
	return Outcome{Kind: OutcomePrompt, Workflow: state.Kind, Step: state.Step, Draft: state.Draft}
}

// save appends the drafted record. The session ends whatever the result, so
// a failed save never leaves the user stuck inside the workflow.
func (e *Engine) save(c call, draft models.Draft) Outcome {
	res, err := e.store.Add(c.ctx, draft.Instrument(0))
	e.sessions.End(c.userID)

	if err != nil {
		e.logger.Error("failed to save instrument", zap.Int64("user_id", c.userID), zap.String("name", draft.Name), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Workflow: c.state.Kind, Draft: draft, Err: err}
	}

	out := Outcome{
		Kind:     OutcomeSaved,
		Workflow: c.state.Kind,
		Draft:    draft,
		Record:   res.Record,
		Synced:   res.Synced,
	}

	if draft.PhotoFileID != "" {
		out.ImageErr = e.savePhoto(c.ctx, res.Record.Number, draft.PhotoFileID)
	}

	e.logger.Info("instrument saved",
		zap.Int64("user_id", c.userID),
		zap.Int("number", res.Record.Number),
		zap.Bool("synced", res.Synced))
	return out
}

func (e *Engine) savePhoto(ctx context.Context, number int, fileID string) error {
	if e.images == nil {
		return ErrNoImageSaver
	}
	if err := e.images.SavePhoto(ctx, number, fileID); err != nil {
		e.logger.Warn("failed to store instrument photo", zap.Int("number", number), zap.Error(err))
		return err
	}
	return nil
}
