package wizard

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/service/session"
)

// ActionKind tags an inbound user action.
type ActionKind int

const (
	ActionSubmit ActionKind = iota
	ActionSkip
	ActionBack
	ActionCancel
	ActionPhoto
)

func (k ActionKind) String() string {
	switch k {
	case ActionSubmit:
		return "submit"
	case ActionSkip:
		return "skip"
	case ActionBack:
		return "back"
	case ActionCancel:
		return "cancel"
	case ActionPhoto:
		return "photo"
	}
	return "unknown"
}

// Action is one classified user input. Value holds the submitted text or the
// photo file id. A non-empty Step pins the action to the step it was offered
// on, so a button pressed on an old prompt is not applied to a later step.
type Action struct {
	Kind  ActionKind
	Value string
	Step  session.Step
}

// Submit builds a text action.
func Submit(value string) Action { return Action{Kind: ActionSubmit, Value: value} }

// Skip builds a skip action.
func Skip() Action { return Action{Kind: ActionSkip} }

// Back builds a back action.
func Back() Action { return Action{Kind: ActionBack} }

// Cancel builds a cancel action.
func Cancel() Action { return Action{Kind: ActionCancel} }

// Photo builds a photo action carrying the chat file id.
func Photo(fileID string) Action { return Action{Kind: ActionPhoto, Value: fileID} }

// At pins the action to a step.
func (a Action) At(step session.Step) Action {
	a.Step = step
	return a
}

// Classify turns free text into an action. Navigation words and commands are
// recognised in any case; everything else is submitted verbatim, trimmed.
func Classify(text string) Action {
	trimmed := strings.TrimSpace(text)

	switch models.ParseCommand(trimmed).Type {
	case models.CommandSkip:
		return Skip()
	case models.CommandBack:
		return Back()
	case models.CommandCancel:
		return Cancel()
	}

	switch strings.ToLower(trimmed) {
	case "skip":
		return Skip()
	case "back":
		return Back()
	case "cancel":
		return Cancel()
	}

	return Submit(trimmed)
}

// Validation problems reported inside outcomes.
var (
	ErrNameTooShort     = errors.New("name must be at least 2 characters")
	ErrSkipNotAllowed   = errors.New("this step cannot be skipped")
	ErrNotANumber       = errors.New("quantity must be a number")
	ErrNegative         = errors.New("quantity must not be negative")
	ErrBadURL           = errors.New("image link must start with http:// or https://")
	ErrPhotoNotExpected = errors.New("a photo is not expected at this step")
	ErrNoPreviousStep   = errors.New("there is no previous step")
	ErrStaleAction      = errors.New("that button belongs to an earlier step")
	ErrUnsupported      = errors.New("action not supported at this step")
)

// MinNameLength is the shortest accepted instrument name, in characters.
const MinNameLength = 2

// ParseQuantity accepts non-negative decimal numbers; a comma works as the
// decimal separator.
func ParseQuantity(text string) (float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if v == "" {
		return 0, ErrNotANumber
	}
	q, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, ErrNotANumber
	}
	if q < 0 {
		return 0, ErrNegative
	}
	return q, nil
}

func validName(text string) error {
	if len([]rune(strings.TrimSpace(text))) < MinNameLength {
		return ErrNameTooShort
	}
	return nil
}

func validURL(text string) error {
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return nil
	}
	return ErrBadURL
}
