package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mamadbah2/toolstock/internal/service/session"
)

// Callback kinds carried in inline button data. Arguments that address an
// instrument are always its number, never its position in a list.
const (
	cbMenu     = "menu"
	cbList     = "list"
	cbSearch   = "search"
	cbResults  = "sres"
	cbItem     = "item"
	cbBack     = "back"
	cbEdit     = "edit"
	cbDelete   = "del"
	cbDeleteOK = "delok"
	cbAdd      = "add"
	cbSkip     = "wiz:skip"
	cbStepBack = "wiz:back"
	cbCancel   = "wiz:cancel"
	cbSync     = "sync"
	cbLink     = "link"
	cbNoop     = "noop"
)

// ErrBadCallback is returned for button data this bot did not produce.
var ErrBadCallback = errors.New("unrecognised callback data")

// Callback is decoded inline button data.
type Callback struct {
	Kind string
	// Arg is a page index or an instrument number, depending on Kind.
	Arg  int
	Step session.Step
}

func token(kind string, arg int) string {
	return fmt.Sprintf("%s:%d", kind, arg)
}

func stepToken(kind string, step session.Step) string {
	return kind + ":" + string(step)
}

// ParseCallback decodes button data.
func ParseCallback(data string) (Callback, error) {
	switch data {
	case cbMenu, cbSearch, cbBack, cbAdd, cbCancel, cbSync, cbLink, cbNoop:
		return Callback{Kind: data}, nil
	}

	for _, kind := range []string{cbSkip, cbStepBack} {
		if step, ok := strings.CutPrefix(data, kind+":"); ok && step != "" {
			return Callback{Kind: kind, Step: session.Step(step)}, nil
		}
	}

	kind, raw, ok := strings.Cut(data, ":")
	if !ok {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	switch kind {
	case cbList, cbResults, cbItem, cbEdit, cbDelete, cbDeleteOK:
	default:
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}

	arg, err := strconv.Atoi(raw)
	if err != nil || arg < 0 {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	return Callback{Kind: kind, Arg: arg}, nil
}
