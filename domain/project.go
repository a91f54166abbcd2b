package domain

import (
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// OrthoProj computes the orthogonal projection of x0 onto the affine subspace
// defined by Ax=b which is the intersection of affine hyperplanes that
// constitute the rows of A with associated shifts in b.  The equation is:
//
//	proj = [I - A^T * (A * A^T)^-1 * A]*x0 + A^T * (A * A^T)^-1 * b
//
// where x0 is the point being projected and I is the identity matrix.  A is
// an m by n matrix where m <= n. if m == n, the returned result is the
// solution to the system A*x0=b
func OrthoProj(x0 []float64, A, b *mat.Dense) []float64 {
	projector, shift := projection(A, b)
	if projector == nil {
		return shift
	}

	x := mat.NewDense(len(x0), 1, x0)
	tmp := &mat.Dense{}
	tmp.Mul(projector, x)
	tmp.Add(tmp, mat.NewDense(len(shift), 1, shift))
	return mat.Col(nil, 0, tmp)
}

// projection returns the matrix I - A^T (A A^T)^-1 A and the vector
// A^T (A A^T)^-1 b.  For square A the projector is nil and the shift is the
// solution of Ax=b.
func projection(A, b *mat.Dense) (projector *mat.Dense, shift []float64) {
	m, n := A.Dims()
	if m == n {
		proj := &mat.Dense{}
		if err := proj.Solve(A, b); err != nil {
			panic(err.Error())
		}
		return nil, mat.Col(nil, 0, proj)
	}

	AAtrans := &mat.Dense{}
	AAtrans.Mul(A, A.T())

	// B = A^T * (A*A^T)^-1
	inv := &mat.Dense{}
	if err := inv.Inverse(AAtrans); err != nil {
		panic(err.Error())
	}
	B := &mat.Dense{}
	B.Mul(A.T(), inv)

	projector = &mat.Dense{}
	projector.Mul(B, A)
	projector.Sub(eye(n), projector)

	tmp := &mat.Dense{}
	tmp.Mul(B, b)
	return projector, mat.Col(nil, 0, tmp)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Plane is the set of points x with Normal·x = Offset.  Normal need not be
// unit length but must be non-zero.
type Plane struct {
	Normal r3.Vec
	Offset float64

	once      sync.Once
	projector *mat.Dense
	shift     []float64
}

func (pl *Plane) Nearest(p r3.Vec) r3.Vec {
	pl.once.Do(func() {
		A := mat.NewDense(1, 3, []float64{pl.Normal.X, pl.Normal.Y, pl.Normal.Z})
		b := mat.NewDense(1, 1, []float64{pl.Offset})
		pl.projector, pl.shift = projection(A, b)
	})

	x := mat.NewVecDense(3, []float64{p.X, p.Y, p.Z})
	proj := mat.NewVecDense(3, nil)
	proj.MulVec(pl.projector, x)
	return r3.Vec{
		X: proj.AtVec(0) + pl.shift[0],
		Y: proj.AtVec(1) + pl.shift[1],
		Z: proj.AtVec(2) + pl.shift[2],
	}
}
