//go:build !debug

// Package check holds invariant assertions that only fire in debug builds.
package check

// Assert does nothing outside debug builds.
func Assert(_ bool, _ string) {}

// Assertf does nothing outside debug builds.
func Assertf(_ bool, _ string, _ ...any) {}
