// Package matrix provides an immutable dense row-major matrix.
//
// A Matrix owns a flat buffer of rows*cols scalars. The invariant
// len(buffer) == rows*cols is checked by New; a Matrix is never mutated after
// construction.
//
// # Basic Usage
//
//	a, err := matrix.New([]int{1, 2, 3, 4}, 2, 2)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(a)         // {1 2, 3 4}
//	fmt.Printf("%#v\n", a) // Matrix(row=2, 2, {1 2, 3 4})
//
// # Extraction
//
// Row copies a contiguous slice of the buffer. Col gathers elements spaced
// cols apart, starting at offset j. Both always return a freshly owned
// vector.Vector so the result can be handed to another goroutine.
//
// # Reference Product
//
// MulSequential computes a product on the calling goroutine. It is the
// reference the parallel engine is verified against.
package matrix
