// Package coords implements PDF transformation matrices. Points are row
// vectors, so m.Multiply(o) applies m first and then o, like "m cm o cm".
package coords

import (
	"errors"
	"math"
)

// Matrix is [a b c d e f] as written before the cm operator.
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate turns counter-clockwise by deg degrees.
func Rotate(deg float64) Matrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Matrix{c, s, -s, c, 0, 0}
}

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// Rect is an axis-aligned box given by its lower-left and upper-right corners.
type Rect struct{ LLX, LLY, URX, URY float64 }

// UnitBounds returns the box enclosing the unit square mapped through m.
func (m Matrix) UnitBounds() Rect {
	corners := [4]Point{
		m.Transform(Point{0, 0}), m.Transform(Point{1, 0}),
		m.Transform(Point{0, 1}), m.Transform(Point{1, 1}),
	}
	r := Rect{LLX: corners[0].X, LLY: corners[0].Y, URX: corners[0].X, URY: corners[0].Y}
	for _, p := range corners[1:] {
		r.LLX, r.URX = math.Min(r.LLX, p.X), math.Max(r.URX, p.X)
		r.LLY, r.URY = math.Min(r.LLY, p.Y), math.Max(r.URY, p.Y)
	}
	return r
}

// Clean rounds entries within 1e-9 of zero, the residue of cos(90) and friends.
func (m Matrix) Clean() Matrix {
	for i, v := range m {
		if math.Abs(v) < 1e-9 {
			m[i] = 0
		}
	}
	return m
}
