// Package logx is a leveled front for the standard logger.
package logx

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	level  atomic.Int32
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	level.Store(int32(LevelInfo))
}

func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetVerbose switches between info and debug output.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
		return
	}
	SetLevel(LevelInfo)
}

// SetOutput redirects all levels. The interactive client points this at a
// file so log lines do not tear the terminal view.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func enabled(l Level) bool {
	return Level(level.Load()) >= l
}

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		logger.Printf("[ERROR] "+format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		logger.Printf("[WARN] "+format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		logger.Printf("[INFO] "+format, args...)
	}
}

func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		logger.Printf("[DEBUG] "+format, args...)
	}
}
