// Package zlog is a thin severity-tagged wrapper around the standard log
// package, favoring plain log.Printf/log.Println calls at call sites over
// an injected logger interface.
package zlog

import "log"

// Severity is the structured logging severity level attached to each log line
// of this design (it never appears on the wire itself — it's a local
// concern — but the taxonomy is named there).
type Severity int

const (
	Debug Severity = iota
	Info
	Error
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Debugf logs at DEBUG severity.
func Debugf(format string, args ...any) { log.Printf("DEBUG: "+format, args...) }

// Infof logs at INFO severity.
func Infof(format string, args ...any) { log.Printf("INFO: "+format, args...) }

// Errorf logs at ERROR severity.
func Errorf(format string, args ...any) { log.Printf("ERROR: "+format, args...) }
