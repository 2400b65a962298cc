// Package exectest provides a fake perf binary and throwaway target programs
// for tests that need real child processes without host perf support.
package exectest

import (
	_ "embed"
	"os"
	"path/filepath"
	"testing"
)

//go:embed fakeperf.sh
var fakePerf []byte

// FakePerf writes the fake perf script into a temp dir and returns its path.
// It reports n*n + 1000 instructions for an input of n bytes.
func FakePerf(t testing.TB) string {
	t.Helper()
	return writeExecutable(t, "perf", fakePerf)
}

// FakeInstructions is the count FakePerf reports for input.
func FakeInstructions(input string) int64 {
	n := int64(len(input))
	return n*n + 1000
}

// Program writes a /bin/sh script with body as a target program.
func Program(t testing.TB, name string, body string) string {
	t.Helper()
	return writeExecutable(t, name, []byte("#!/bin/sh\n"+body+"\n"))
}

func writeExecutable(t testing.TB, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
