// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Poor man's logging. Implements 3-level loggers for Warn, Info and Debug.
// Minimal wrap around standard library's "log" package. Warnings are enabled
// unconditionally, Info and Debug loggers have to be enabled explicitly.
package logging

import (
	"fmt"
	"io"
	"log"
)

var (
	defaultOutput io.Writer = log.Default().Writer()
	debugFlags              = log.Ldate | log.Ltime | log.Lshortfile
	infoFlags               = log.Ldate | log.Ltime
	// Info and Debug loggers should be explicitly enabled via call to
	// Enable*Logger(). Warnings should never be silenced, so WarnLogger is
	// active from the start.
	DebugLogger = log.New(io.Discard, debugPrefix, debugFlags)
	InfoLogger  = log.New(io.Discard, infoPrefix, infoFlags)
	WarnLogger  = log.New(defaultOutput, warnPrefix, infoFlags)
)

const (
	debugPrefix = "DEBUG: "
	infoPrefix  = "INFO: "
	warnPrefix  = "WARNING: "
	calldepth   = 2
)

// EnableInfoLogger helper function to explicitly enable InfoLogger.
func EnableInfoLogger() {
	InfoLogger.SetOutput(defaultOutput)
}

// EnableDebugLogger helper function to explicitly enable DebugLogger.
func EnableDebugLogger() {
	DebugLogger.SetOutput(defaultOutput)
}

func Info(v ...interface{}) {
	InfoLogger.Output(calldepth, fmt.Sprint(v...))
}

func Infof(format string, v ...interface{}) {
	InfoLogger.Output(calldepth, fmt.Sprintf(format, v...))
}

func Warn(v ...interface{}) {
	WarnLogger.Output(calldepth, fmt.Sprint(v...))
}

func Warnf(format string, v ...interface{}) {
	WarnLogger.Output(calldepth, fmt.Sprintf(format, v...))
}

func Debug(v ...interface{}) {
	DebugLogger.Output(calldepth, fmt.Sprint(v...))
}

func Debugf(format string, v ...interface{}) {
	DebugLogger.Output(calldepth, fmt.Sprintf(format, v...))
}

// Log bundles the leveled loggers so that they can be handed to components
// at construction time instead of components reaching for package state.
type Log struct {
	info  *log.Logger
	warn  *log.Logger
	debug *log.Logger
}

// Current returns a Log bundle backed by the package-level loggers.
func Current() *Log {
	return &Log{info: InfoLogger, warn: WarnLogger, debug: DebugLogger}
}

// Discard returns a Log bundle that drops everything. Handy in tests.
func Discard() *Log {
	l := log.New(io.Discard, "", 0)
	return &Log{info: l, warn: l, debug: l}
}

func (l *Log) Infof(format string, v ...interface{}) {
	l.info.Output(calldepth, fmt.Sprintf(format, v...))
}

func (l *Log) Warnf(format string, v ...interface{}) {
	l.warn.Output(calldepth, fmt.Sprintf(format, v...))
}

func (l *Log) Debugf(format string, v ...interface{}) {
	l.debug.Output(calldepth, fmt.Sprintf(format, v...))
}
