package diff

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/ScreenDelta/internal/framestore"
)

func solidView(w, h int, px [4]byte) framestore.View {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:], px[:])
	}
	return framestore.View{Pix: pix, Stride: w * 4, Width: w, Height: h, Valid: true}
}

func setPixel(v framestore.View, x, y int, px [4]byte) {
	copy(v.Pix[y*v.Stride+x*4:], px[:])
}

func cloneView(v framestore.View) framestore.View {
	v.Pix = append([]byte(nil), v.Pix...)
	return v
}

func requireCovered(t *testing.T, m *Mask, regions []Region) {
	t.Helper()
	for y, row := range m.Rows {
		for _, run := range row {
			for x := run.X0; x < run.X1; x++ {
				covered := false
				for _, r := range regions {
					if r.Contains(x, y) {
						covered = true
						break
					}
				}
				require.Truef(t, covered, "changed pixel (%d,%d) is not covered", x, y)
			}
		}
	}
}

func TestIdenticalFramesYieldNothing(t *testing.T) {
	a := solidView(64, 48, [4]byte{10, 20, 30, 255})
	for _, policy := range []Policy{PolicyMarkers, PolicyComponents} {
		d, err := New(Config{Policy: policy})
		require.NoError(t, err)
		res, err := d.Detect(a, cloneView(a))
		require.NoError(t, err)
		assert.Empty(t, res.Regions)
		assert.Zero(t, res.ChangedPixels)
	}
}

func TestSinglePixelChange(t *testing.T) {
	a := solidView(32, 32, [4]byte{0, 0, 0, 0})
	b := cloneView(a)
	setPixel(b, 10, 10, [4]byte{255, 0, 0, 255})

	for _, policy := range []Policy{PolicyMarkers, PolicyComponents} {
		t.Run(string(policy), func(t *testing.T) {
			d, err := New(Config{Policy: policy})
			require.NoError(t, err)

			res, err := d.Detect(b, a)
			require.NoError(t, err)
			require.NotEmpty(t, res.Regions)
			require.Equal(t, 1, res.ChangedPixels)
			covered := false
			for _, r := range res.Regions {
				covered = covered || r.Contains(10, 10)
			}
			require.True(t, covered)

			res, err = d.Detect(a, cloneView(a))
			require.NoError(t, err)
			require.Empty(t, res.Regions)
		})
	}
}

func TestMarkersReferenceShape(t *testing.T) {
	a := solidView(8, 8, [4]byte{})
	b := cloneView(a)
	setPixel(b, 3, 4, [4]byte{1, 0, 0, 0})
	setPixel(b, 4, 4, [4]byte{0, 0, 0, 1})

	d, err := New(Config{Policy: PolicyMarkers})
	require.NoError(t, err)
	res, err := d.Detect(b, a)
	require.NoError(t, err)
	require.Equal(t, []Region{
		{Left: 3, Top: 4, Right: 53, Bottom: 54},
		{Left: 4, Top: 4, Right: 54, Bottom: 54},
	}, res.Regions)
}

func TestComponentsBoundingBoxes(t *testing.T) {
	a := solidView(20, 20, [4]byte{})
	b := cloneView(a)
	// an L shape plus a diagonal neighbour
	setPixel(b, 2, 2, [4]byte{1})
	setPixel(b, 2, 3, [4]byte{1})
	setPixel(b, 3, 3, [4]byte{1})
	setPixel(b, 4, 4, [4]byte{1})
	// a separate blob
	setPixel(b, 15, 1, [4]byte{1})
	setPixel(b, 16, 1, [4]byte{1})

	m, err := Classify(b, a)
	require.NoError(t, err)
	require.Equal(t, 6, m.Count())

	regions := Components(m, 0)
	require.ElementsMatch(t, []Region{
		{Left: 2, Top: 2, Right: 5, Bottom: 5},
		{Left: 15, Top: 1, Right: 17, Bottom: 2},
	}, regions)

	padded := Components(m, 3)
	require.ElementsMatch(t, []Region{
		{Left: 0, Top: 0, Right: 8, Bottom: 8},
		{Left: 12, Top: 0, Right: 20, Bottom: 5},
	}, padded)
}

func TestComponentsJoinAcrossRuns(t *testing.T) {
	a := solidView(10, 3, [4]byte{})
	b := cloneView(a)
	// two runs on row 0 joined through a long run on row 1
	setPixel(b, 0, 0, [4]byte{1})
	setPixel(b, 8, 0, [4]byte{1})
	for x := 1; x < 8; x++ {
		setPixel(b, x, 1, [4]byte{1})
	}
	m, err := Classify(b, a)
	require.NoError(t, err)
	require.Equal(t, []Region{{Left: 0, Top: 0, Right: 9, Bottom: 2}}, Components(m, 0))
}

func TestCoverageRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := solidView(97, 61, [4]byte{})
	for i := range a.Pix {
		a.Pix[i] = byte(rng.Intn(256))
	}
	b := cloneView(a)
	for i := 0; i < 300; i++ {
		x, y := rng.Intn(a.Width), rng.Intn(a.Height)
		b.Pix[y*b.Stride+x*4+rng.Intn(4)] ^= 0xff
	}

	m, err := Classify(b, a)
	require.NoError(t, err)
	require.NotZero(t, m.Count())
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			off := y*a.Stride + x*4
			differs := string(a.Pix[off:off+4]) != string(b.Pix[off:off+4])
			require.Equal(t, differs, m.Changed(x, y), "pixel (%d,%d)", x, y)
		}
	}

	requireCovered(t, m, Markers(m, DefaultMarkerSize))
	requireCovered(t, m, Components(m, 0))
	require.Len(t, Markers(m, DefaultMarkerSize), m.Count())
}

func TestClassifyHonoursStride(t *testing.T) {
	cur := framestore.View{Pix: make([]byte, 2*32), Stride: 32, Width: 2, Height: 2, Valid: true}
	prev := framestore.View{Pix: make([]byte, 2*8), Stride: 8, Width: 2, Height: 2, Valid: true}
	// padding bytes differ but are outside the frame
	for i := 8; i < 32; i++ {
		cur.Pix[i] = 0xaa
	}
	cur.Pix[32+4] = 1

	m, err := Classify(cur, prev)
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())
	require.True(t, m.Changed(1, 1))
}

func TestEdgeCases(t *testing.T) {
	d, err := New(Config{})
	require.NoError(t, err)
	require.Equal(t, PolicyComponents, d.Policy())

	res, err := d.Detect(framestore.View{Valid: true}, framestore.View{Valid: true})
	require.NoError(t, err)
	require.Empty(t, res.Regions)

	a := solidView(4, 4, [4]byte{})
	b := solidView(4, 4, [4]byte{1, 1, 1, 1})
	b.Valid = false
	res, err = d.Detect(a, b)
	require.NoError(t, err)
	require.Empty(t, res.Regions)

	_, err = d.Detect(solidView(4, 4, [4]byte{}), solidView(5, 4, [4]byte{}))
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = New(Config{Policy: "blobs"})
	require.Error(t, err)
	_, err = New(Config{Policy: PolicyMarkers, MarkerSize: -1})
	require.Error(t, err)
}
