package enhance

import (
	"math"
	"math/rand"
	"testing"

	"reference-enhancer/internal/opencv/safe"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func matFromBytes(t *testing.T, rows, cols int, matType gocv.MatType, data []byte) *safe.Mat {
	t.Helper()

	tmp, err := gocv.NewMatFromBytes(rows, cols, matType, data)
	require.NoError(t, err)
	defer tmp.Close()

	m, err := safe.NewMatFromMat(tmp)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func uniformImage(t *testing.T, rows, cols int, value uint8) *safe.Mat {
	t.Helper()

	data := make([]byte, rows*cols*3)
	for i := range data {
		data[i] = value
	}
	return matFromBytes(t, rows, cols, gocv.MatTypeCV8UC3, data)
}

// noisyImage adds Gaussian noise with the given sigma around base to every sample.
func noisyImage(t *testing.T, rows, cols int, base uint8, sigma float64, seed int64) *safe.Mat {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, rows*cols*3)
	for i := range data {
		v := float64(base) + rng.NormFloat64()*sigma
		data[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	return matFromBytes(t, rows, cols, gocv.MatTypeCV8UC3, data)
}

// texture returns a deterministic single-channel pattern of size rows x cols.
func texture(rows, cols int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, rows*cols)
	for i := range data {
		data[i] = uint8(rng.Intn(256))
	}
	return data
}

func window(src []byte, srcCols, top, left, rows, cols int) []byte {
	out := make([]byte, 0, rows*cols)
	for y := top; y < top+rows; y++ {
		out = append(out, src[y*srcCols+left:y*srcCols+left+cols]...)
	}
	return out
}

func matBytes(t *testing.T, m *safe.Mat) []byte {
	t.Helper()
	data, err := m.Bytes()
	require.NoError(t, err)
	return data
}
