/*
MIT License

Copyright (c) 2019 Nicolas JUHEL

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package logger wraps logrus with a small level taxonomy, plus a
// CheckError helper for the common "log this error at a level, or not at
// all" call sites (cobra/completion.go is the one caller in this module).
package logger

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	std = logrus.New()
)

// SetOutput lets the entrypoint redirect logs (e.g. to stderr, which is the
// default, or to a file for the REPL's history-adjacent diagnostics).
func SetOutput(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

func Logrus() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func SetLevel(l Level) {
	Logrus().SetLevel(l.Logrus())
}

// CheckError logs err's text at lvl with msg attached as the "scope" field
// and returns true; lvl NilLevel suppresses the log line. A nil err returns
// false and, unless onNil is NilLevel, logs an entry with an empty message
// at onNil. Mirrors the pattern the CLI's cobra completion wiring relies on.
func CheckError(lvl Level, onNil Level, msg string, err error) bool {
	if err == nil {
		if onNil != NilLevel {
			Logrus().WithField("scope", msg).Log(onNil.Logrus())
		}
		return false
	}

	if lvl == NilLevel {
		return true
	}

	Logrus().WithField("scope", msg).Log(lvl.Logrus(), err.Error())
	return true
}

func WithField(key string, val interface{}) *logrus.Entry {
	return Logrus().WithField(key, val)
}
