package mask

import (
	"gonum.org/v1/gonum/stat"
)

// AlphaStats counts the pixels of an 8-bit stencil by coverage.
type AlphaStats struct {
	Transparent int
	Partial     int
	Opaque      int
}

// Binary reports whether the stencil has no partially covered pixels.
func (a AlphaStats) Binary() bool { return a.Partial == 0 }

// coverage bins: [0,1) transparent, [1,255) partial, [255,256) opaque.
var coverageDividers = []float64{0, 1, 255, 256}

var alphaValues = func() []float64 {
	x := make([]float64, 256)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}()

// Stats bins the values of an 8-bit stencil.
func Stats(stencil []byte) AlphaStats {
	weights := make([]float64, 256)
	for _, v := range stencil {
		weights[v]++
	}
	h := stat.Histogram(nil, coverageDividers, alphaValues, weights)
	return AlphaStats{
		Transparent: int(h[0]),
		Partial:     int(h[1]),
		Opaque:      int(h[2]),
	}
}
