package matrix

import (
	"fmt"
	"math"
	"strings"

	"matpool/internal/vector"
)

// Matrix は行優先の密行列を表す
type Matrix[T vector.Scalar] struct {
	data []T
	rows int
	cols int
}

// New は data をコピーして rows×cols の行列を作成する
func New[T vector.Scalar](data []T, rows, cols int) (*Matrix[T], error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	if rows > math.MaxInt/cols {
		return nil, fmt.Errorf("%w: %dx%d overflows int", ErrBadShape, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrBadShape, len(data), rows, cols)
	}

	buf := make([]T, len(data))
	copy(buf, data)
	return &Matrix[T]{data: buf, rows: rows, cols: cols}, nil
}

// MustNew は New と同じだが、エラー時にパニックする
func MustNew[T vector.Scalar](data []T, rows, cols int) *Matrix[T] {
	m, err := New(data, rows, cols)
	if err != nil {
		panic(err)
	}
	return m
}

// fromBuffer はコピーせずに行列を組み立てる（呼び出し側が所有権を手放す）
func fromBuffer[T vector.Scalar](buf []T, rows, cols int) *Matrix[T] {
	return &Matrix[T]{data: buf, rows: rows, cols: cols}
}

// Rows は行数を返す
func (m *Matrix[T]) Rows() int {
	return m.rows
}

// Cols は列数を返す
func (m *Matrix[T]) Cols() int {
	return m.cols
}

// At は (i, j) の要素を返す
func (m *Matrix[T]) At(i, j int) (T, error) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		return vector.Zero[T](), fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, m.rows, m.cols)
	}
	return m.data[i*m.cols+j], nil
}

// Values は行優先バッファのコピーを返す
func (m *Matrix[T]) Values() []T {
	out := make([]T, len(m.data))
	copy(out, m.data)
	return out
}

// Row は i 行目をコピーしたベクトルを返す
func (m *Matrix[T]) Row(i int) (vector.Vector[T], error) {
	if i < 0 || i >= m.rows {
		return vector.Vector[T]{}, fmt.Errorf("%w: row %d of %d", ErrOutOfRange, i, m.rows)
	}
	return vector.New(m.data[i*m.cols : (i+1)*m.cols]), nil
}

// Col は j 列目をストライド cols で収集したベクトルを返す
func (m *Matrix[T]) Col(j int) (vector.Vector[T], error) {
	if j < 0 || j >= m.cols {
		return vector.Vector[T]{}, fmt.Errorf("%w: col %d of %d", ErrOutOfRange, j, m.cols)
	}

	gathered := make([]T, 0, m.rows)
	for k := j; k < len(m.data); k += m.cols {
		gathered = append(gathered, m.data[k])
	}
	return vector.New(gathered), nil
}

// Equal は形状と全要素が一致するかを返す
func (m *Matrix[T]) Equal(other *Matrix[T]) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i := range m.data {
		if m.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// String は {1 2, 3 4} 形式で行列を表現する
func (m *Matrix[T]) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprint(&sb, m.data[i*m.cols+j])
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// GoString は %#v 用に形状付きの表現を返す
func (m *Matrix[T]) GoString() string {
	return fmt.Sprintf("Matrix(row=%d, %d, %s)", m.rows, m.cols, m.String())
}

// MulSequential は呼び出し元のゴルーチンで a×b を計算する
func MulSequential[T vector.Scalar](a, b *Matrix[T]) (*Matrix[T], error) {
	if err := CheckProduct(a, b); err != nil {
		return nil, err
	}

	out := make([]T, a.rows*b.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < b.cols; j++ {
			sum := vector.Zero[T]()
			for k := 0; k < a.cols; k++ {
				sum += a.data[i*a.cols+k] * b.data[k*b.cols+j]
			}
			out[i*b.cols+j] = sum
		}
	}
	return fromBuffer(out, a.rows, b.cols), nil
}

// CheckProduct は a×b が計算可能かを検証する
func CheckProduct[T vector.Scalar](a, b *Matrix[T]) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: nil operand", ErrBadShape)
	}
	if a.cols != b.rows {
		return fmt.Errorf("%w: %dx%d * %dx%d", ErrShapeMismatch, a.rows, a.cols, b.rows, b.cols)
	}
	// 出力バッファ rows*cols も int に収まる必要がある
	if a.rows > math.MaxInt/b.cols {
		return fmt.Errorf("%w: %dx%d result overflows int", ErrBadShape, a.rows, b.cols)
	}
	return nil
}
