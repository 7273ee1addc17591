// internal/geo/transform.go - Matrices and affine transforms
package geo

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
)

// ErrSingular is returned when a transform has no inverse
var ErrSingular = errors.New("transform matrix is singular")

// Matrix3 is a row-major 3x3 matrix
type Matrix3 [3][3]float64

// Identity3 returns the identity matrix
func Identity3() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// MatrixFromColumns builds a matrix whose columns are x, y and z
func MatrixFromColumns(x, y, z r3.Vector) Matrix3 {
	return Matrix3{
		{x.X, y.X, z.X},
		{x.Y, y.Y, z.Y},
		{x.Z, y.Z, z.Z},
	}
}

// Column returns column i
func (m Matrix3) Column(i int) r3.Vector {
	return r3.Vector{X: m[0][i], Y: m[1][i], Z: m[2][i]}
}

// MulVec returns m * v
func (m Matrix3) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m * o
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// Determinant returns det(m)
func (m Matrix3) Determinant() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse of m via the adjugate
func (m Matrix3) Inverse() (Matrix3, error) {
	det := m.Determinant()
	scale := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			scale = math.Max(scale, math.Abs(m[i][j]))
		}
	}
	if scale == 0 || math.Abs(det) <= 1e-30*scale*scale*scale {
		return Matrix3{}, ErrSingular
	}

	inv := Matrix3{
		{
			m[1][1]*m[2][2] - m[1][2]*m[2][1],
			m[0][2]*m[2][1] - m[0][1]*m[2][2],
			m[0][1]*m[1][2] - m[0][2]*m[1][1],
		},
		{
			m[1][2]*m[2][0] - m[1][0]*m[2][2],
			m[0][0]*m[2][2] - m[0][2]*m[2][0],
			m[0][2]*m[1][0] - m[0][0]*m[1][2],
		},
		{
			m[1][0]*m[2][1] - m[1][1]*m[2][0],
			m[0][1]*m[2][0] - m[0][0]*m[2][1],
			m[0][0]*m[1][1] - m[0][1]*m[1][0],
		},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv[i][j] /= det
		}
	}
	return inv, nil
}

// Transform is an affine map p -> Origin + Matrix*p
type Transform struct {
	Origin r3.Vector
	Matrix Matrix3
}

// IdentityTransform returns the identity transform
func IdentityTransform() Transform {
	return Transform{Matrix: Identity3()}
}

// NewTranslation returns a pure translation
func NewTranslation(t r3.Vector) Transform {
	return Transform{Origin: t, Matrix: Identity3()}
}

// NewOriginAndMatrix returns p -> origin + m*p
func NewOriginAndMatrix(origin r3.Vector, m Matrix3) Transform {
	return Transform{Origin: origin, Matrix: m}
}

// NewPickupPutdown returns the transform p -> putdown + m*(p - pickup)
func NewPickupPutdown(m Matrix3, pickup, putdown r3.Vector) Transform {
	return NewOriginAndMatrix(putdown, m).Multiply(NewTranslation(pickup.Mul(-1)))
}

// Apply maps a point through the transform
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return t.Origin.Add(t.Matrix.MulVec(p))
}

// ApplyVector maps a direction, ignoring the translation
func (t Transform) ApplyVector(v r3.Vector) r3.Vector {
	return t.Matrix.MulVec(v)
}

// Multiply returns the composition t∘o, applying o first
func (t Transform) Multiply(o Transform) Transform {
	return Transform{
		Origin: t.Origin.Add(t.Matrix.MulVec(o.Origin)),
		Matrix: t.Matrix.Mul(o.Matrix),
	}
}

// Inverse returns the inverse transform
func (t Transform) Inverse() (Transform, error) {
	inv, err := t.Matrix.Inverse()
	if err != nil {
		return Transform{}, err
	}
	return Transform{Origin: inv.MulVec(t.Origin).Mul(-1), Matrix: inv}, nil
}

// EcefLocation anchors engineering coordinates on the earth: Origin is the
// ECEF position of the engineering origin and XVector/YVector the ECEF
// directions of the engineering X and Y axes.
type EcefLocation struct {
	Origin  r3.Vector
	XVector r3.Vector
	YVector r3.Vector
}

// EcefLocationFromCartographic builds an east-north-up frame at origin
func EcefLocationFromCartographic(origin Cartographic) EcefLocation {
	sinLat, cosLat := math.Sincos(origin.Latitude)
	sinLon, cosLon := math.Sincos(origin.Longitude)

	return EcefLocation{
		Origin:  origin.ToECEF(),
		XVector: r3.Vector{X: -sinLon, Y: cosLon, Z: 0},
		YVector: r3.Vector{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat},
	}
}

// Transform returns the engineering-to-ECEF transform
func (l EcefLocation) Transform() Transform {
	z := l.XVector.Cross(l.YVector)
	return NewOriginAndMatrix(l.Origin, MatrixFromColumns(l.XVector, l.YVector, z))
}
