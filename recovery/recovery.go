// Package recovery decides what the scanner and parser do when a source PDF
// is malformed. Stamping accepts files straight from other tools, so the
// stamper runs with LoggingStrategy while tests pin behaviour with
// StrictStrategy or LenientStrategy.
package recovery

import (
	"context"
	"fmt"
)

type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

// Location pins an error to a byte offset and, when known, the object being
// read. Component is a "->" separated trail such as "parser->scanner:hex".
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

func (l Location) String() string {
	return fmt.Sprintf("[%s] offset %d", l.Component, l.ByteOffset)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

var actionNames = [...]string{ActionFail: "fail", ActionSkip: "skip", ActionFix: "fix", ActionWarn: "warn"}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "fail"
	}
	return actionNames[a]
}

// Allows reports whether action lets parsing continue.
func Allows(action Action) bool { return action != ActionFail }
