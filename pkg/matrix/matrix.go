// Package matrix builds the weighted co-occurrence matrix behind a chord
// diagram.
package matrix

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a square table addressed by view-local indices. Cell (i, j) is
// the accumulated pairing weight between entities i and j; the diagonal is
// always zero.
type Matrix struct {
	n     int
	dense *mat.Dense // nil for the empty matrix
}

// New returns an n×n zero matrix.
func New(n int) *Matrix {
	m := &Matrix{n: n}
	if n > 0 {
		m.dense = mat.NewDense(n, n, nil)
	}
	return m
}

// FromRows copies rows into a Matrix. Rows must form a square table with
// non-negative weights and a zero diagonal.
func FromRows(rows [][]float64) (*Matrix, error) {
	m := New(len(rows))
	for i, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(rows))
		}
		for j, v := range row {
			switch {
			case v < 0:
				return nil, fmt.Errorf("negative weight %g at (%d, %d)", v, i, j)
			case i == j && v != 0:
				return nil, fmt.Errorf("non-zero diagonal at %d", i)
			}
			if v != 0 {
				m.dense.Set(i, j, v)
			}
		}
	}
	return m, nil
}

// Len is the number of rows (and columns).
func (m *Matrix) Len() int {
	return m.n
}

// At returns the weight between i and j. Indices outside [0, Len) panic.
func (m *Matrix) At(i, j int) float64 {
	if m.dense == nil {
		panic(fmt.Sprintf("matrix: index (%d, %d) out of range for empty matrix", i, j))
	}
	return m.dense.At(i, j)
}

func (m *Matrix) add(i, j int, w float64) {
	m.dense.Set(i, j, m.dense.At(i, j)+w)
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.dense)
}

// Rows returns a copy of the whole table.
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.n)
	for i := range rows {
		rows[i] = m.Row(i)
	}
	return rows
}

// RowSum is the total weight of row i, the size of its arc.
func (m *Matrix) RowSum(i int) float64 {
	return floats.Sum(m.Row(i))
}

// IsSymmetric reports whether m equals its transpose within tol.
func (m *Matrix) IsSymmetric(tol float64) bool {
	if m.dense == nil {
		return true
	}
	return mat.EqualApprox(m.dense, m.dense.T(), tol)
}

// Dense exposes the backing gonum matrix, or nil when empty.
func (m *Matrix) Dense() mat.Matrix {
	if m.dense == nil {
		return nil
	}
	return m.dense
}

// MarshalJSON encodes the matrix as an array of rows.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Rows())
}
