// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %v, expected: %v", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Fatalf("line %d doesn't match, got: %q, expected: %q", i, l, expected[i])
		}
	}
}

func TestLevels(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}
	l.Debugf("debug")
	l.Infof("info %d", 1)
	l.Warningf("warning")
	if got, want := len(tw.lines), 2; got != want {
		t.Fatalf("got %d lines (%q), want %d", got, tw.lines, want)
	}
	if tw.lines[0] != "info 1\n" {
		t.Errorf("got %q, want %q", tw.lines[0], "info 1\n")
	}
	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2025, time.May, 7, 8, 9, 10, 11000, time.UTC)
	e.Emit(0, Warning, ts, "hello %s", "world")
	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(tw.lines))
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0507 08:09:10.000011 ") {
		t.Errorf("unexpected header in %q", line)
	}
	if !strings.HasSuffix(line, "] hello world\n") {
		t.Errorf("unexpected message in %q", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("caller missing from %q", line)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	base := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(base, time.Hour)
	for i := 0; i < 5; i++ {
		rl.Warningf("missing %d", i)
	}
	if got, want := len(tw.lines), 1; got != want {
		t.Fatalf("got %d lines (%q), want %d", got, tw.lines, want)
	}
	if tw.lines[0] != "missing 0\n" {
		t.Errorf("got %q, want %q", tw.lines[0], "missing 0\n")
	}
	if !rl.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false")
	}
}

func TestRateLimitedLoggerReportsSuppressed(t *testing.T) {
	tw := &testWriter{}
	base := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(base, time.Millisecond)
	rl.Infof("a")
	rl.Infof("b")
	rl.Infof("c")
	time.Sleep(10 * time.Millisecond)
	rl.Infof("d")
	last := tw.lines[len(tw.lines)-1]
	if !strings.HasPrefix(last, "d") {
		t.Fatalf("last line: got %q, want message d", last)
	}
	if len(tw.lines) < 4 && !strings.Contains(last, "similar messages suppressed") {
		t.Errorf("suppressed count missing from %q", last)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	opts := PatternOpts{Command: "convert", Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	f, err := OpenFile(filepath.Join(dir, "sub", "tegravid.%COMMAND%.%TIMESTAMP%.log"), os.O_CREATE|os.O_WRONLY, opts)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	want := filepath.Join(dir, "sub", "tegravid.convert.20250102-030405.000000.log")
	if f.Name() != want {
		t.Errorf("path: got %q, want %q", f.Name(), want)
	}

	if f, err := OpenFile("", 0, opts); f != nil || err != nil {
		t.Errorf("OpenFile(\"\"): got (%v, %v), want (nil, nil)", f, err)
	}
}
