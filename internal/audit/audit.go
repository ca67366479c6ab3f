// Package audit emits one human-readable activity line per
// state-changing call to an append-only log. The portal never reads
// these lines back.
package audit

import (
	"time"

	"go.uber.org/zap"
)

type Log struct {
	l *zap.Logger
}

func NewLog() *Log {
	return &Log{
		l: zap.L().Named("audit"),
	}
}

func (a *Log) Record(actor, action string) {
	a.l.Info(action,
		zap.String("actor", actor),
		zap.Time("at", time.Now()))
}

// Noop discards activity lines. Used in tests.
type Noop struct{}

func (Noop) Record(actor, action string) {}
