package vector

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch はベクトル長が一致しない場合のエラー
var ErrLengthMismatch = errors.New("vector: length mismatch")

// Scalar は加算・乗算が可能な数値型の制約
type Scalar interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Zero は加法単位元を返す
func Zero[T Scalar]() T {
	var zero T
	return zero
}

// Vector はスカラーの所有された列
type Vector[T Scalar] struct {
	data []T
}

// New は values をコピーして新しいVectorを作成する
func New[T Scalar](values []T) Vector[T] {
	data := make([]T, len(values))
	copy(data, values)
	return Vector[T]{data: data}
}

// Len は要素数を返す
func (v Vector[T]) Len() int {
	return len(v.data)
}

// At は i 番目の要素を返す
func (v Vector[T]) At(i int) T {
	return v.data[i]
}

// Values は要素のコピーを返す
func (v Vector[T]) Values() []T {
	out := make([]T, len(v.data))
	copy(out, v.data)
	return out
}

// DotProduct は a と b の内積を返す
// 長さが異なる場合は ErrLengthMismatch を返す
func DotProduct[T Scalar](a, b Vector[T]) (T, error) {
	if len(a.data) != len(b.data) {
		return Zero[T](), fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(a.data), len(b.data))
	}

	sum := Zero[T]()
	for i := range a.data {
		sum += a.data[i] * b.data[i]
	}
	return sum, nil
}
