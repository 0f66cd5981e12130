// Package zaplog adapts a go.uber.org/zap SugaredLogger to the logx.Logger
// interface this module's components depend on.
package zaplog

import (
	"go.uber.org/zap"

	"github.com/plcgo/goenip/logx"
)

type adapter struct {
	s *zap.SugaredLogger
}

// New wraps an existing *zap.Logger as a logx.Logger.
func New(l *zap.Logger) logx.Logger {
	return adapter{s: l.Sugar()}
}

// NewProduction builds a zap production logger and wraps it. It is a
// convenience for callers that don't already manage their own zap
// configuration.
func NewProduction() (logx.Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

func (a adapter) Debugf(format string, args ...interface{}) { a.s.Debugf(format, args...) }
func (a adapter) Infof(format string, args ...interface{})  { a.s.Infof(format, args...) }
func (a adapter) Warnf(format string, args ...interface{})  { a.s.Warnf(format, args...) }
func (a adapter) Errorf(format string, args ...interface{}) { a.s.Errorf(format, args...) }
