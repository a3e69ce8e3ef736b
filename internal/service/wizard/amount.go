package wizard

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/service/session"
)

// BeginEdit starts an amount edit for the instrument with the given number.
// The target is held by number, so rows shifting underneath do not matter.
func (e *Engine) BeginEdit(userID int64, number int) Outcome {
	rec, err := e.store.Table().Get(number)
	if err != nil {
		return e.done(Outcome{Kind: OutcomeNotFound, Workflow: session.KindEditAmount, Target: number, Err: err})
	}

	state := e.sessions.BeginEdit(userID, StepAwaitingAmount, number)
	e.logger.Info("amount edit started", zap.Int64("user_id", userID), zap.Int("number", number))
	return e.done(Outcome{
		Kind:     OutcomePrompt,
		Workflow: state.Kind,
		Step:     state.Step,
		Target:   number,
		Record:   rec,
	})
}

func submitAmount(e *Engine, c call) Outcome {
	quantity, err := ParseQuantity(c.action.Value)
	if err != nil {
		return invalid(c.state, err)
	}

	res, err := e.store.SetQuantity(c.ctx, c.state.Target, quantity)
	e.sessions.End(c.userID)

	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return Outcome{Kind: OutcomeNotFound, Workflow: c.state.Kind, Target: c.state.Target, Err: err}
	case err != nil:
		e.logger.Error("failed to update amount", zap.Int("number", c.state.Target), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Workflow: c.state.Kind, Target: c.state.Target, Err: err}
	}

	e.logger.Info("amount updated",
		zap.Int64("user_id", c.userID),
		zap.Int("number", res.Record.Number),
		zap.Float64("previous", res.Previous),
		zap.Float64("quantity", res.Record.Quantity))

	return Outcome{
		Kind:     OutcomeUpdated,
		Workflow: c.state.Kind,
		Target:   c.state.Target,
		Record:   res.Record,
		Previous: res.Previous,
		Synced:   res.Synced,
	}
}
