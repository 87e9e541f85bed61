// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel is the verbosity of the logs. Messages with a level larger than the level of the LogGroup are dropped.
type LogLevel int

const (
	// ErrLevel=1 - the minimum level of logging.
	ErrLevel LogLevel = iota + 1

	// WarnLevel=2 - the level for logging warnings, and errors
	WarnLevel

	// InfoLevel=3 - the level for logging high-level information, results
	InfoLevel

	// DebugLevel=4 - the level for debugging information. The tool will run properly on large programs with
	// that level of debug information.
	DebugLevel

	// TraceLevel=5 - the level for tracing. The tool will not run properly on large programs with that level
	// of information, but this is useful on smaller testing programs.
	TraceLevel
)

var logrusLevels = map[LogLevel]logrus.Level{
	ErrLevel:   logrus.ErrorLevel,
	WarnLevel:  logrus.WarnLevel,
	InfoLevel:  logrus.InfoLevel,
	DebugLevel: logrus.DebugLevel,
	TraceLevel: logrus.TraceLevel,
}

// LogGroup is the logger of the tool. Each message is printed with a prefix indicating its level.
type LogGroup struct {
	level  LogLevel
	logger *logrus.Logger
	format *prefixFormatter
}

// prefixFormatter prints entries as "[LEVEL] message", optionally after a timestamp
type prefixFormatter struct {
	timestamps bool
}

func (f *prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("[")
	switch entry.Level {
	case logrus.WarnLevel:
		b.WriteString("WARN")
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		b.WriteString("ERROR")
	default:
		b.WriteString(strings.ToUpper(entry.Level.String()))
	}
	b.WriteString("] ")
	if f.timestamps {
		b.WriteString(entry.Time.Format("2006/01/02 15:04:05 "))
	}
	b.WriteString(entry.Message)
	if !strings.HasSuffix(entry.Message, "\n") {
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// NewLogGroup returns a log group that is configured to the logging settings stored inside the config
func NewLogGroup(config *Config) *LogGroup {
	level := LogLevel(config.LogLevel)
	if config.SilenceWarn && level >= WarnLevel {
		level = ErrLevel
	}
	format := &prefixFormatter{timestamps: true}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(format)
	if l, ok := logrusLevels[level]; ok {
		logger.SetLevel(l)
	} else if level > TraceLevel {
		logger.SetLevel(logrus.TraceLevel)
	} else {
		logger.SetLevel(logrus.ErrorLevel)
	}
	return &LogGroup{
		level:  level,
		logger: logger,
		format: format,
	}
}

// SetAllOutput sets all the output writers to the writer provided
func (l *LogGroup) SetAllOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetAllFlags sets the flags of the log group in the manner of the standard log package. Only the date and time flags
// have an effect: timestamps are printed if one of them is set.
func (l *LogGroup) SetAllFlags(x int) {
	l.format.timestamps = x&(log.Ldate|log.Ltime|log.Lmicroseconds) != 0
}

// Level returns the level of the log group
func (l *LogGroup) Level() LogLevel {
	return l.level
}

// LogsDebug returns true if debug messages are printed
func (l *LogGroup) LogsDebug() bool {
	return l.level >= DebugLevel
}

// LogsTrace returns true if trace messages are printed
func (l *LogGroup) LogsTrace() bool {
	return l.level >= TraceLevel
}

// Tracef prints to the trace logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Tracef(format string, v ...any) {
	if l.level >= TraceLevel {
		l.logger.Tracef(format, v...)
	}
}

// Debugf prints to the debug logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Debugf(format string, v ...any) {
	if l.level >= DebugLevel {
		l.logger.Debugf(format, v...)
	}
}

// Infof prints to the info logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Infof(format string, v ...any) {
	if l.level >= InfoLevel {
		l.logger.Infof(format, v...)
	}
}

// Warnf prints to the warning logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Warnf(format string, v ...any) {
	if l.level >= WarnLevel {
		l.logger.Warnf(format, v...)
	}
}

// Errorf prints to the error logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Errorf(format string, v ...any) {
	if l.level >= ErrLevel {
		l.logger.Errorf(format, v...)
	}
}
