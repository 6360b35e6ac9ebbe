package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Logger décrit le logger minimal utilisé pour tracer les panics.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler encapsule le lancement de goroutines avec récupération de panic.
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler crée un nouveau handler.
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo lance une goroutine protégée contre les panics.
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("Panic dans une goroutine: %v\nStack trace:\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext lance une goroutine avec contexte, protégée contre les panics.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("Panic dans une goroutine (avec contexte): %v\nStack trace:\n%s", r, debug.Stack())
			}
		}()
		fn(ctx)
	}()
}

// SimpleLogger écrit les erreurs sur la sortie standard.
type SimpleLogger struct{}

func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	fmt.Printf("[ERROR] "+format+"\n", args...)
}

// DefaultRecoveryHandler est le handler global par défaut.
var DefaultRecoveryHandler = NewRecoveryHandler(&SimpleLogger{})

// SafeGo lance une goroutine sûre avec le handler global.
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext lance une goroutine sûre avec contexte.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
