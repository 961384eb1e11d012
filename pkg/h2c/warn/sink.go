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

// Package warn implements the pipeline's append-only warning sink (spec §5):
// ordered by insertion, never mutated or pruned, safe to print after any
// phase including the last.
package warn

import "fmt"

// Kind classifies a warning the way spec §7 names error kinds that are
// non-fatal.
type Kind string

const (
	KindMalformedDocument    Kind = "MalformedDocument"
	KindUnknownKind          Kind = "UnknownKind"
	KindUnsupportedKind      Kind = "UnsupportedKind"
	KindMissingReference     Kind = "MissingReference"
	KindExtensionLoadFailure Kind = "ExtensionLoadFailure"
	KindExtensionRuntime     Kind = "ExtensionRuntimeFailure"
	KindConvergenceExhausted Kind = "ConvergenceExhaustion"
	KindUnresolvedPlaceholder Kind = "UnresolvedPlaceholder"
	KindExcludedReference    Kind = "ExcludedReference"
)

// Warning is one entry in the sink.
type Warning struct {
	Kind     Kind
	Manifest string // "kind/name", empty if not manifest-scoped
	Message  string
}

func (w Warning) String() string {
	if w.Manifest == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Manifest, w.Message)
}

// Sink is an append-only, insertion-ordered collection of warnings.
type Sink struct {
	entries []Warning
}

// NewSink returns an empty warning sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add appends a warning to the sink.
func (s *Sink) Add(kind Kind, manifestRef, message string) {
	s.entries = append(s.entries, Warning{Kind: kind, Manifest: manifestRef, Message: message})
}

// Addf appends a formatted warning to the sink.
func (s *Sink) Addf(kind Kind, manifestRef, format string, args ...interface{}) {
	s.Add(kind, manifestRef, fmt.Sprintf(format, args...))
}

// All returns every warning recorded so far, in insertion order. The
// returned slice is a copy; mutating it does not affect the sink.
func (s *Sink) All() []Warning {
	out := make([]Warning, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of warnings recorded so far.
func (s *Sink) Len() int {
	return len(s.entries)
}

// Lines renders every warning as a printable line, for the run report.
func (s *Sink) Lines() []string {
	lines := make([]string, 0, len(s.entries))
	for _, w := range s.entries {
		lines = append(lines, w.String())
	}
	return lines
}
