// Package logx defines the minimal logging seam used throughout this
// module. Components accept a Logger rather than reaching for a
// package-level global, so a caller embedding this client in a larger
// process can route its output anywhere (or nowhere).
package logx

// Logger is satisfied by structured loggers such as zap's
// SugaredLogger as well as trivial test doubles. Args follow the
// printf-style convention, not key/value pairs, to keep adapters thin.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Nop discards everything. It is the default when no Logger is
// supplied via a constructor option.
type Nop struct{}

func (Nop) Debugf(string, ...interface{}) {}
func (Nop) Infof(string, ...interface{})  {}
func (Nop) Warnf(string, ...interface{})  {}
func (Nop) Errorf(string, ...interface{}) {}

// NewNop returns a Logger that discards all output.
func NewNop() Logger { return Nop{} }
