// Package logging supplies the default types.Logger implementation used
// when a caller does not bring their own. It follows the same shape the
// teacher package used for its default logger, but backs it with
// logrus instead of the bare standard library logger.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// New returns a types.Logger backed by a fresh *logrus.Logger writing
// text-formatted entries to stderr. *logrus.Logger already implements
// every method types.Logger requires, so this is mostly construction
// plus the debug-level toggle the rest of the codebase expects.
func New() *Default {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &Default{Logger: l}
}

// Default wraps *logrus.Logger to add the debug-toggle convenience the
// teacher's DefaultLogger exposed.
type Default struct {
	*logrus.Logger
}

// ToggleDebug flips between Debug and Info level and returns the new
// debug state.
func (d *Default) ToggleDebug(value bool) bool {
	if value {
		d.SetLevel(logrus.DebugLevel)
	} else {
		d.SetLevel(logrus.InfoLevel)
	}
	return value
}

var _ types.Logger = (*Default)(nil)
