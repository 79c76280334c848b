// Package vector provides an owned, ordered sequence of scalars and the dot
// product over two of them.
//
// # Scalars
//
// Every numeric kind Go can add and multiply natively satisfies Scalar.
// Zero returns the additive identity used to seed sums:
//
//	sum := vector.Zero[float64]()
//
// # Ownership
//
// New always copies its input, so a Vector never aliases the slice (or the
// matrix) it was built from. This lets a Vector cross a goroutine boundary
// without any locking.
//
//	a := vector.New([]int{1, 2, 3})
//	b := vector.New([]int{4, 5, 6})
//	v, err := vector.DotProduct(a, b) // 32, nil
package vector
