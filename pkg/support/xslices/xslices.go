// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
//
// Functions that "modify" a slice here always return a new slice and never change the
// one given, so slices can be shared freely among callers.
package xslices

import (
	"golang.org/x/exp/constraints"
)

// Iota returns a slice of incremental int values, starting with start and of length len.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T interface {
	constraints.Integer | constraints.Float
}](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Concat returns a new slice with the concatenation of all the given slices.
func Concat[T any](slices ...[]T) []T {
	size := 0
	for _, s := range slices {
		size += len(s)
	}
	out := make([]T, 0, size)
	for _, s := range slices {
		out = append(out, s...)
	}
	return out
}

// RemoveFirst returns a new slice with the first occurrence of value removed, and whether it was found.
// If not found, it returns a copy of the slice.
func RemoveFirst[T comparable](slice []T, value T) ([]T, bool) {
	out := make([]T, 0, len(slice))
	found := false
	for _, e := range slice {
		if !found && e == value {
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, found
}
