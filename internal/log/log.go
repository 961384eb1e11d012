/**
 * Copyright 2020 Appvia Ltd <info@appvia.io>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log provides the ambient structured logger shared by every
// h2c-core package. It wraps logrus the same way upstream conversion
// tooling in this space does: a single package-level logger, a small
// Fields alias, and Warn/Info/Debug/Error helpers that take structured
// fields instead of a format string soup.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Fields wraps logrus.Fields so callers never need to import logrus directly.
type Fields logrus.Fields

var logger = &logrus.Logger{
	Out: os.Stderr,
	Formatter: &prefixed.TextFormatter{
		DisableTimestamp: true,
	},
	Hooks: make(logrus.LevelHooks),
	Level: logrus.InfoLevel,
}

// SetLevel sets the ambient log level.
func SetLevel(level logrus.Level) {
	logger.Level = level
}

// SetVerbose toggles debug-level logging on or off.
func SetVerbose(verbose bool) {
	if verbose {
		logger.Level = logrus.DebugLevel
		return
	}
	logger.Level = logrus.InfoLevel
}

// SetOutput redirects the logger's output, used when piping logs to a UI.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Debug(args ...interface{}) { logger.Debug(args...) }
func Info(args ...interface{})  { logger.Info(args...) }
func Warn(args ...interface{})  { logger.Warn(args...) }
func Error(args ...interface{}) { logger.Error(args...) }

func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }

// WithFields returns a logrus entry decorated with the given fields, for
// call sites that want to chain a level call (e.g. WithFields(f).Warn(...)).
func WithFields(f Fields) *logrus.Entry {
	return logger.WithFields(logrus.Fields(f))
}

func DebugWithFields(f Fields, args ...interface{}) { WithFields(f).Debug(args...) }
func InfoWithFields(f Fields, args ...interface{})  { WithFields(f).Info(args...) }
func WarnWithFields(f Fields, args ...interface{})  { WithFields(f).Warn(args...) }
func ErrorWithFields(f Fields, args ...interface{}) { WithFields(f).Error(args...) }
