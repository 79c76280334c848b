package matrix

import "errors"

var (
	// ErrBadShape is returned when rows or cols are non-positive, or when the
	// data length does not equal rows*cols.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrShapeMismatch is returned by a product whose operands satisfy a.Cols() != b.Rows().
	ErrShapeMismatch = errors.New("matrix: shape mismatch")

	// ErrOutOfRange indicates a row or column index outside valid bounds.
	ErrOutOfRange = errors.New("matrix: index out of range")
)
