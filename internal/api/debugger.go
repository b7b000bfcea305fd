package api

import (
	"bufio"
	"os"
	"strings"
)

const procStatus = "/proc/self/status"

// DebuggerAttached reports whether a tracer such as dlv or gdb is attached to
// the process. Outside Linux, or when procfs is unreadable, it reports false.
func DebuggerAttached() bool {
	return tracerAttached(procStatus)
}

func tracerAttached(path string) bool {
	f, err := os.Open(path) //nolint:gosec // fixed procfs path or test fixture
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck // read-only

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		pid, ok := strings.CutPrefix(sc.Text(), "TracerPid:")
		if !ok {
			continue
		}
		pid = strings.TrimSpace(pid)
		return pid != "" && pid != "0"
	}
	return false
}
