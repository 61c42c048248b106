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

package logger

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is a uint8 type with a matching logrus.Level for every named value.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	// NilLevel never logs; used to disable a CheckError call site entirely.
	NilLevel
)

func GetLevelListString() []string {
	return []string{
		strings.ToLower(PanicLevel.String()),
		strings.ToLower(FatalLevel.String()),
		strings.ToLower(ErrorLevel.String()),
		strings.ToLower(WarnLevel.String()),
		strings.ToLower(InfoLevel.String()),
		strings.ToLower(DebugLevel.String()),
	}
}

func GetLevelString(l string) Level {
	switch {
	case strings.Contains(strings.ToLower(PanicLevel.String()), strings.ToLower(l)):
		return PanicLevel
	case strings.Contains(strings.ToLower(FatalLevel.String()), strings.ToLower(l)):
		return FatalLevel
	case strings.Contains(strings.ToLower(ErrorLevel.String()), strings.ToLower(l)):
		return ErrorLevel
	case strings.Contains(strings.ToLower(WarnLevel.String()), strings.ToLower(l)):
		return WarnLevel
	case strings.Contains(strings.ToLower(InfoLevel.String()), strings.ToLower(l)):
		return InfoLevel
	case strings.Contains(strings.ToLower(DebugLevel.String()), strings.ToLower(l)):
		return DebugLevel
	}

	return InfoLevel
}

func (l Level) Uint8() uint8 {
	return uint8(l)
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "Debug"
	case InfoLevel:
		return "Info"
	case WarnLevel:
		return "Warning"
	case ErrorLevel:
		return "Error"
	case FatalLevel:
		return "Fatal Error"
	case PanicLevel:
		return "Critical Error"
	case NilLevel:
		return ""
	}

	return "unknown"
}

func (l Level) Logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	case PanicLevel:
		return logrus.PanicLevel
	default:
		return math.MaxInt32
	}
}
