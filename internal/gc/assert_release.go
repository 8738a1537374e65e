//go:build !gcdebug

package gc

// debugAssertsEnabled is a single compile-time switch, false in a release
// build.
const debugAssertsEnabled = false

// assertf is a no-op in release builds: invariant violations are
// tolerated rather than fatal.
func assertf(cond bool, format string, args ...any) {}
