// Package utils provides small helpers shared across packages.
package utils

import "strings"

// AreAddressesEqual compares two Ethereum addresses for equality,
// ignoring case.
func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Map applies a transformation to every element of a slice and returns
// the results.
func Map[A any, B any](coll []A, mapper func(i A, index uint64) B) []B {
	out := make([]B, 0, len(coll))
	for i, item := range coll {
		out = append(out, mapper(item, uint64(i)))
	}
	return out
}
