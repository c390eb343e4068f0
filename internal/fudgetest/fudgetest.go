// Package fudgetest wraps github.com/dgryski/go-ddmin for shrinking a
// failing fuzz input down to a minimal reproduction, for use from the
// package's gofuzz-style Fuzz/FuzzJSON entry points and their
// _test.go drivers.
package fudgetest

import "github.com/dgryski/go-ddmin"

// Minimize shrinks data to the smallest subsequence for which fails still
// reports true, using the delta-debugging algorithm. fails must return
// true for data itself before calling Minimize.
func Minimize(data []byte, fails func([]byte) bool) []byte {
	return ddmin.Minimize(data, func(d []byte) ddmin.Result {
		if fails(d) {
			return ddmin.Fail
		}
		return ddmin.Pass
	})
}
