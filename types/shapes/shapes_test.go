// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Scalar(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.True(t, shape0.AllBroadcastable())
	require.Equal(t, "(Float64)", shape0.String())

	row := Make(dtypes.Float32, true, false)
	require.Equal(t, 2, row.Rank())
	require.True(t, row.IsBroadcastable(0))
	require.False(t, row.IsBroadcastable(-1))
	require.Equal(t, "(Float32)[1 N]", row.String())
	require.Panics(t, func() { row.IsBroadcastable(2) })

	require.True(t, row.Equal(Make(dtypes.Float32, true, false)))
	require.False(t, row.Equal(Make(dtypes.Float64, true, false)))
	require.False(t, row.Equal(Matrix(dtypes.Float32)))
	require.True(t, row.EqualPattern(Make(dtypes.Int64, true, false)))

	clone := row.Clone()
	clone.Broadcastable[0] = false
	require.True(t, row.IsBroadcastable(0), "Clone must not share the pattern")
	require.Equal(t, dtypes.Int32, row.WithDType(dtypes.Int32).DType)
}

func TestEncompasses(t *testing.T) {
	assert.True(t, Encompasses([]bool{false, false}, []bool{true, false}))
	assert.True(t, Encompasses([]bool{false, false}, []bool{false}))
	assert.True(t, Encompasses([]bool{false}, nil))
	assert.False(t, Encompasses([]bool{true, false}, []bool{false, false}))
	assert.False(t, Encompasses([]bool{false}, []bool{false, false}))
	assert.True(t, Encompasses([]bool{true, true}, []bool{true}))
}

func TestMergeBroadcastable(t *testing.T) {
	assert.Equal(t, []bool{true, false}, MergeBroadcastable([]bool{true, false}, []bool{false}))
	assert.Equal(t, []bool{false, true}, MergeBroadcastable([]bool{true, true}, []bool{false, true}))
	assert.Equal(t, []bool{true, false}, MergeBroadcastable([]bool{true, false}, []bool{true}))
	assert.Equal(t, []bool{}, MergeBroadcastable(nil, []bool{}))
	assert.Equal(t, []bool{true, true, false}, MergeBroadcastable([]bool{true, true, true}, []bool{false}))
}

func TestLeftPadded(t *testing.T) {
	s := Vector(dtypes.Float32)
	assert.Equal(t, []bool{true, true, false}, s.LeftPadded(3))
	assert.Equal(t, []bool{false}, s.LeftPadded(1))
}

func TestAsserts(t *testing.T) {
	m := Matrix(dtypes.Float32)
	require.NoError(t, m.CheckRank(2))
	require.Error(t, m.CheckRank(1))
	require.NoError(t, m.Check(dtypes.Float32, false, false))
	require.Error(t, m.Check(dtypes.Float64, false, false))
	require.Error(t, m.Check(dtypes.Float32, true, false))
	require.NotPanics(t, func() { AssertRank(2, m, Matrix(dtypes.Int64)) })
	require.Panics(t, func() { AssertRank(1, m) })
	require.Equal(t, dtypes.Float32, AssertSameDType(m, Vector(dtypes.Float32)))
	require.Panics(t, func() { AssertSameDType(m, Vector(dtypes.Float64)) })
}
