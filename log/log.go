// Copyright 2018 The ledgerd Authors
// This file is part of the ledgerd library.
//
// The ledgerd library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledgerd library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package log provides a minimal structured, leveled logger shared by every
// package in this module. Loggers are obtained per module with
// NewModuleLogger and carry a fixed "module" context field on every record.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

// Module identifies the subsystem a logger belongs to.
type Module string

const (
	Blockchain Module = "blockchain"
	Mempool    Module = "mempool"
	P2P        Module = "p2p"
	Node       Module = "node"
	Work       Module = "work"
	Accounts   Module = "accounts"
	API        Module = "api"
	CLI        Module = "cli"
	CmdUtils   Module = "cmdutils"
	Storage    Module = "storage"
	Common     Module = "common"
)

type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (l Lvl) color() color.Attribute {
	switch l {
	case LvlCrit:
		return color.FgHiRed
	case LvlError:
		return color.FgRed
	case LvlWarn:
		return color.FgYellow
	case LvlInfo:
		return color.FgGreen
	default:
		return color.FgWhite
	}
}

// Logger emits leveled, key/value structured records with a fixed module
// context, the way the teacher's own log.NewModuleLogger loggers do.
type Logger interface {
	Crit(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
	NewWith(ctx ...interface{}) Logger
}

var (
	mu        sync.Mutex
	out       io.Writer = colorable.NewColorableStdout()
	threshold           = LvlInfo
	useColor            = true
)

// SetOutput redirects every logger's output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the global verbosity threshold; records above it are dropped.
func SetLevel(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	threshold = l
}

// SetColor toggles ANSI coloring of level tags.
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	useColor = enabled
}

type logger struct {
	module Module
	ctx    []interface{}
}

// NewModuleLogger returns a Logger scoped to the given module, mirroring
// the teacher's log.NewModuleLogger(log.<Module>) call-site convention.
func NewModuleLogger(m Module) Logger {
	return &logger{module: m}
}

// New returns a Logger scoped to no particular module but with the given
// static key/value context attached to every record, for per-instance
// contextual loggers (e.g. log.New("database", file)).
func New(ctx ...interface{}) Logger {
	return &logger{ctx: ctx}
}

func (l *logger) NewWith(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{module: l.module, ctx: merged}
}

func (l *logger) New(ctx ...interface{}) Logger {
	return l.NewWith(ctx...)
}

func (l *logger) Crit(msg string, ctx ...interface{}) { l.write(LvlCrit, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }

func (l *logger) write(lvl Lvl, msg string, extra []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > threshold {
		return
	}

	tag := lvl.String()
	if useColor {
		tag = color.New(lvl.color()).Sprint(tag)
	}

	ts := time.Now().Format("2006-01-02T15:04:05.000-0700")
	fmt.Fprintf(out, "%s [%s] %-5s %s", ts, tag, moduleTag(l.module), msg)

	all := make([]interface{}, 0, len(l.ctx)+len(extra))
	all = append(all, l.ctx...)
	all = append(all, extra...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(out)

	if lvl == LvlCrit {
		fmt.Fprintln(out, stack.Trace().TrimRuntime())
		os.Exit(1)
	}
}

func moduleTag(m Module) string {
	if m == "" {
		return "-"
	}
	return string(m)
}
