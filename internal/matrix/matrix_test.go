package matrix

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesShape(t *testing.T) {
	tests := []struct {
		name       string
		data       []int
		rows, cols int
	}{
		{"zero rows", []int{}, 0, 2},
		{"negative cols", []int{1}, 1, -1},
		{"too few values", []int{1, 2, 3}, 2, 2},
		{"too many values", []int{1, 2, 3, 4, 5}, 2, 2},
		{"product overflows to zero", []int{}, 1 << 62, 4},
		{"product overflows to length", []int{1, 2, 3, 4}, 1<<62 + 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.data, tt.rows, tt.cols)
			require.ErrorIs(t, err, ErrBadShape)
			assert.Nil(t, m)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	src := []int{1, 2, 3, 4}
	m, err := New(src, 2, 2)
	require.NoError(t, err)

	src[0] = 99
	v, err := m.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew([]int{1, 2, 3}, 2, 2) })
	assert.NotPanics(t, func() { MustNew([]int{1, 2, 3, 4}, 2, 2) })
}

func TestAt(t *testing.T) {
	m := MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)

	v, err := m.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	_, err = m.At(2, 0)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = m.At(0, -1)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestRowAndCol(t *testing.T) {
	m := MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)

	row, err := m.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, row.Values())

	col, err := m.Col(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, col.Values())

	col, err = m.Col(2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 6}, col.Values())

	_, err = m.Row(2)
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = m.Col(3)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestExtractedVectorsAreIndependent(t *testing.T) {
	m := MustNew([]int{1, 2, 3, 4}, 2, 2)

	row, err := m.Row(0)
	require.NoError(t, err)
	vals := row.Values()
	vals[0] = 42

	v, err := m.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		m    *Matrix[int]
		want string
	}{
		{"2x2", MustNew([]int{7, 10, 15, 22}, 2, 2), "{7 10, 15 22}"},
		{"2x3", MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3), "{1 2 3, 4 5 6}"},
		{"1x1", MustNew([]int{5}, 1, 1), "{5}"},
		{"column", MustNew([]int{1, 2, 3}, 3, 1), "{1, 2, 3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.String())
			assert.Equal(t, tt.want, fmt.Sprint(tt.m))
		})
	}
}

func TestGoString(t *testing.T) {
	m := MustNew([]int{22, 28, 49, 64}, 2, 2)
	assert.Equal(t, "Matrix(row=2, 2, {22 28, 49 64})", fmt.Sprintf("%#v", m))
}

func TestStringFloat(t *testing.T) {
	m := MustNew([]float64{7, 10.5, 15, 22}, 2, 2)
	assert.Equal(t, "{7 10.5, 15 22}", m.String())
}

func TestEqual(t *testing.T) {
	a := MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := MustNew([]int{1, 2, 3, 4}, 2, 2)
	c := MustNew([]int{1, 2, 3, 4}, 1, 4)
	d := MustNew([]int{1, 2, 3, 5}, 2, 2)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
}

func TestMulSequential(t *testing.T) {
	a := MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)
	b := MustNew([]int{1, 2, 3, 4, 5, 6}, 3, 2)

	c, err := MulSequential(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Rows())
	assert.Equal(t, 2, c.Cols())
	assert.Equal(t, []int{22, 28, 49, 64}, c.Values())
}

func TestMulSequentialShapeMismatch(t *testing.T) {
	a := MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)
	b := MustNew([]int{1, 2, 3, 4}, 2, 2)

	c, err := MulSequential(a, b)
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Nil(t, c)
}

func TestCheckProductNil(t *testing.T) {
	a := MustNew([]int{1}, 1, 1)
	require.ErrorIs(t, CheckProduct(a, nil), ErrBadShape)
	require.ErrorIs(t, CheckProduct(nil, a), ErrBadShape)
}

func TestCheckProductOutputOverflow(t *testing.T) {
	// 各オペランドは int に収まるが、出力 (1<<40)x(1<<40) は収まらない
	a := &Matrix[int]{data: nil, rows: 1 << 40, cols: 1}
	b := &Matrix[int]{data: nil, rows: 1, cols: 1 << 40}

	require.ErrorIs(t, CheckProduct(a, b), ErrBadShape)

	c, err := MulSequential(a, b)
	require.ErrorIs(t, err, ErrBadShape)
	assert.Nil(t, c)
}
