package gc

import "fmt"

// runtimePanic formats and panics, used alongside assertf to report
// invariant violations in debug builds.
func runtimePanic(format string, args ...any) {
	panic(fmt.Sprintf("gc: "+format, args...))
}
