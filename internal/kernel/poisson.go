package kernel

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PoissonSolve returns S such that Laplacian2D(S) = R on a periodic N×N grid.
//
// The solve is diagonal in Fourier space with eigenvalues
// 2cos(2πkx/N) + 2cos(2πky/N) - 4. The DC mode has eigenvalue 0 and is
// forced to zero, so the returned S always has zero mean. When R itself has
// non-zero mean, Laplacian2D(S) reproduces R minus that mean.
//
// Non-square input fails with a *ShapeError before any work is done.
func PoissonSolve(r *Grid) (*Grid, error) {
	if r.Rows != r.Cols || r.Rows == 0 {
		return nil, shapeErr("PoissonSolve", "non-empty square grid", r.Rows, r.Cols)
	}
	if len(r.Data) != r.Rows*r.Cols {
		return nil, &ShapeError{Op: "PoissonSolve", Want: "len(Data) == Rows*Cols", Got: "inconsistent buffer"}
	}
	n := r.Rows

	spec := make([]complex128, n*n)
	for i, v := range r.Data {
		spec[i] = complex(v, 0)
	}
	fft := fourier.NewCmplxFFT(n)
	fft2(fft, spec, n, false)

	eig := make([]float64, n)
	for k := 0; k < n; k++ {
		eig[k] = 2 * math.Cos(2*math.Pi*float64(k)/float64(n))
	}
	for ky := 0; ky < n; ky++ {
		for kx := 0; kx < n; kx++ {
			i := ky*n + kx
			lam := eig[ky] + eig[kx] - 4
			if ky == 0 && kx == 0 {
				spec[i] = 0
				continue
			}
			spec[i] /= complex(lam, 0)
		}
	}

	fft2(fft, spec, n, true)
	out := NewGrid(n, n)
	for i, v := range spec {
		out.Data[i] = real(v)
	}

	// Remove the floating-point residue of the zeroed DC mode so the mean is
	// exactly representable as zero up to summation order.
	mean := 0.0
	for _, v := range out.Data {
		mean += v
	}
	mean /= float64(n * n)
	for i := range out.Data {
		out.Data[i] -= mean
	}
	return out, nil
}

// fft2 transforms data (n×n, row-major) in place. The inverse is computed as
// conj(FFT(conj(x)))/n per axis, so a forward and inverse pass round-trip.
func fft2(fft *fourier.CmplxFFT, data []complex128, n int, inverse bool) {
	line := make([]complex128, n)
	out := make([]complex128, n)

	transform := func() {
		if inverse {
			for i := range line {
				line[i] = cmplx.Conj(line[i])
			}
		}
		fft.Coefficients(out, line)
		if inverse {
			scale := complex(1/float64(n), 0)
			for i := range out {
				out[i] = cmplx.Conj(out[i]) * scale
			}
		}
	}

	for row := 0; row < n; row++ {
		copy(line, data[row*n:(row+1)*n])
		transform()
		copy(data[row*n:(row+1)*n], out)
	}
	for col := 0; col < n; col++ {
		for row := 0; row < n; row++ {
			line[row] = data[row*n+col]
		}
		transform()
		for row := 0; row < n; row++ {
			data[row*n+col] = out[row]
		}
	}
}
