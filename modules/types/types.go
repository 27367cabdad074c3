package types

import (
	"fmt"
	"strings"
)

// Value types shuttled between the host document and the engine binding.
// No math happens on this side of the boundary, these are storage types.

type Vector3 [3]float64

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v[0], v[1], v[2])
}

type Color [3]float64

// Matrix4 is a row-major 4x4 transform.
type Matrix4 [16]float64

func IdentityMatrix() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func TranslationMatrix(v Vector3) Matrix4 {
	m := IdentityMatrix()
	m[3] = v[0]
	m[7] = v[1]
	m[11] = v[2]
	return m
}

func (m Matrix4) Translation() Vector3 {
	return Vector3{m[3], m[7], m[11]}
}

func (m Matrix4) Translated(v Vector3) Matrix4 {
	m[3] += v[0]
	m[7] += v[1]
	m[11] += v[2]
	return m
}

func (m Matrix4) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range m {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}
