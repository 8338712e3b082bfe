// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log provides leveled logging with a silence-below-threshold
// writer scheme instead of per-call-site level checks. Every line is
// additionally tagged with the local node id once one has been
// assigned, so output from several dstcd processes sharing a terminal
// or log aggregator can be told apart at a glance.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
)

var nodeTag atomic.Value

func init() {
	nodeTag.Store("")
}

// SetNodeID tags every subsequent log line with the local node id.
// Call once, as soon as a Transport has assigned or confirmed it.
func SetNodeID(id uint32) {
	nodeTag.Store(fmt.Sprintf("[node %d] ", id))
}

func currentTag() string {
	return nodeTag.Load().(string)
}

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

var (
	DebugPrefix string = "[DEBUG]    "
	InfoPrefix  string = "[INFO]     "
	NotePrefix  string = "[NOTICE]   "
	WarnPrefix  string = "[WARNING]  "
	ErrPrefix   string = "[ERROR]    "
	CritPrefix  string = "[CRITICAL] "
)

var (
	// No Time/Date; the node tag and level prefix are baked into each
	// message string rather than into the logger itself, so they stay
	// accurate if SetNodeID is called after these loggers are created.
	DebugLog = log.New(DebugWriter, "", 0)
	InfoLog  = log.New(InfoWriter, "", 0)
	NoteLog  = log.New(NoteWriter, "", log.Lshortfile)
	WarnLog  = log.New(WarnWriter, "", log.Lshortfile)
	ErrLog   = log.New(ErrWriter, "", log.Llongfile)
	CritLog  = log.New(CritWriter, "", log.Llongfile)
	// Log Time/Date
	DebugTimeLog = log.New(DebugWriter, "", log.LstdFlags)
	InfoTimeLog  = log.New(InfoWriter, "", log.LstdFlags)
	NoteTimeLog  = log.New(NoteWriter, "", log.LstdFlags|log.Lshortfile)
	WarnTimeLog  = log.New(WarnWriter, "", log.LstdFlags|log.Lshortfile)
	ErrTimeLog   = log.New(ErrWriter, "", log.LstdFlags|log.Llongfile)
	CritTimeLog  = log.New(CritWriter, "", log.LstdFlags|log.Llongfile)
)

/* CONFIG */

func SetLogLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "notice":
		NoteWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// Nothing to discard.
	default:
		fmt.Printf("pkg/log: flag 'loglevel' has invalid value %#v, using 'debug'\n", lvl)
		SetLogLevel("debug")
	}
}

func SetLogDateTime(logdate bool) {
	logDateTime = logdate
}

/* PRINT */

func printStr(v ...interface{}) string {
	return fmt.Sprint(v...)
}

func Print(v ...interface{}) {
	Info(v...)
}

func Debug(v ...interface{}) {
	if DebugWriter != io.Discard {
		out := currentTag() + DebugPrefix + printStr(v...)
		if logDateTime {
			DebugTimeLog.Output(2, out)
		} else {
			DebugLog.Output(2, out)
		}
	}
}

func Info(v ...interface{}) {
	if InfoWriter != io.Discard {
		out := currentTag() + InfoPrefix + printStr(v...)
		if logDateTime {
			InfoTimeLog.Output(2, out)
		} else {
			InfoLog.Output(2, out)
		}
	}
}

func Note(v ...interface{}) {
	if NoteWriter != io.Discard {
		out := currentTag() + NotePrefix + printStr(v...)
		if logDateTime {
			NoteTimeLog.Output(2, out)
		} else {
			NoteLog.Output(2, out)
		}
	}
}

func Warn(v ...interface{}) {
	if WarnWriter != io.Discard {
		out := currentTag() + WarnPrefix + printStr(v...)
		if logDateTime {
			WarnTimeLog.Output(2, out)
		} else {
			WarnLog.Output(2, out)
		}
	}
}

func Error(v ...interface{}) {
	if ErrWriter != io.Discard {
		out := currentTag() + ErrPrefix + printStr(v...)
		if logDateTime {
			ErrTimeLog.Output(2, out)
		} else {
			ErrLog.Output(2, out)
		}
	}
}

// Panic writes an error log entry, then panics — the stack trace
// survives, the process does not exit on its own.
func Panic(v ...interface{}) {
	Error(v...)
	panic("dstc: fatal error, see preceding log entry")
}

// Fatal writes an error log entry and terminates the process.
func Fatal(v ...interface{}) {
	Error(v...)
	os.Exit(1)
}

func Crit(v ...interface{}) {
	if CritWriter != io.Discard {
		out := currentTag() + CritPrefix + printStr(v...)
		if logDateTime {
			CritTimeLog.Output(2, out)
		} else {
			CritLog.Output(2, out)
		}
	}
}

/* PRINT FORMAT */

func printfStr(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}

func Printf(format string, v ...interface{}) {
	Infof(format, v...)
}

func Debugf(format string, v ...interface{}) {
	if DebugWriter != io.Discard {
		out := currentTag() + DebugPrefix + printfStr(format, v...)
		if logDateTime {
			DebugTimeLog.Output(2, out)
		} else {
			DebugLog.Output(2, out)
		}
	}
}

func Infof(format string, v ...interface{}) {
	if InfoWriter != io.Discard {
		out := currentTag() + InfoPrefix + printfStr(format, v...)
		if logDateTime {
			InfoTimeLog.Output(2, out)
		} else {
			InfoLog.Output(2, out)
		}
	}
}

func Notef(format string, v ...interface{}) {
	if NoteWriter != io.Discard {
		out := currentTag() + NotePrefix + printfStr(format, v...)
		if logDateTime {
			NoteTimeLog.Output(2, out)
		} else {
			NoteLog.Output(2, out)
		}
	}
}

func Warnf(format string, v ...interface{}) {
	if WarnWriter != io.Discard {
		out := currentTag() + WarnPrefix + printfStr(format, v...)
		if logDateTime {
			WarnTimeLog.Output(2, out)
		} else {
			WarnLog.Output(2, out)
		}
	}
}

func Errorf(format string, v ...interface{}) {
	if ErrWriter != io.Discard {
		out := currentTag() + ErrPrefix + printfStr(format, v...)
		if logDateTime {
			ErrTimeLog.Output(2, out)
		} else {
			ErrLog.Output(2, out)
		}
	}
}

// Panicf writes an error log entry, then panics.
func Panicf(format string, v ...interface{}) {
	Errorf(format, v...)
	panic("dstc: fatal error, see preceding log entry")
}

// Fatalf writes an error log entry and terminates the process.
func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

func Critf(format string, v ...interface{}) {
	if CritWriter != io.Discard {
		out := currentTag() + CritPrefix + printfStr(format, v...)
		if logDateTime {
			CritTimeLog.Output(2, out)
		} else {
			CritLog.Output(2, out)
		}
	}
}

/* SPECIAL */

// Finfof writes directly to w at info level, bypassing the level
// gate — for output that must go to a caller-chosen destination (a
// response writer, a pipe) rather than the package's InfoWriter.
func Finfof(w io.Writer, format string, v ...interface{}) {
	if w != io.Discard {
		tagged := currentTag() + InfoPrefix + format
		if logDateTime {
			fmt.Fprintf(w, time.Now().String()+" "+tagged+"\n", v...)
		} else {
			fmt.Fprintf(w, tagged+"\n", v...)
		}
	}
}
