package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// outlineRect draws a one-pixel rectangle outline from (x0,y0) to (x1,y1).
func outlineRect(img *image.Gray, x0, y0, x1, y1 int) {
	for x := x0; x <= x1; x++ {
		img.SetGray(x, y0, color.Gray{Y: 255})
		img.SetGray(x, y1, color.Gray{Y: 255})
	}
	for y := y0; y <= y1; y++ {
		img.SetGray(x0, y, color.Gray{Y: 255})
		img.SetGray(x1, y, color.Gray{Y: 255})
	}
}

func TestTraceContourMoore_Block(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	contours := FindContours(img, 0)
	require.Len(t, contours, 1)

	want := []utils.Point{
		{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 2},
		{X: 3, Y: 3}, {X: 2, Y: 3}, {X: 1, Y: 3}, {X: 1, Y: 2},
	}
	assert.Equal(t, want, contours[0].Points)
	assert.InDelta(t, 4.0, contours[0].Area(), 1e-9)
	assert.InDelta(t, 8.0, contours[0].Perimeter(), 1e-9)
}

func TestTraceContourMoore_SinglePixel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	img.SetGray(1, 1, color.Gray{Y: 255})

	contours := FindContours(img, 0)
	require.Len(t, contours, 1)
	assert.Equal(t, []utils.Point{{X: 1, Y: 1}}, contours[0].Points)
	assert.Zero(t, contours[0].Area())
}

func TestFindContours_SeparateComponents(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 60, 40))
	outlineRect(img, 2, 2, 20, 20)
	outlineRect(img, 30, 5, 55, 35)

	contours := FindContours(img, 0)
	require.Len(t, contours, 2)

	top := largestContours(contours, 1)
	require.Len(t, top, 1)
	assert.InDelta(t, 25.0*30.0, top[0].Area(), 1e-9)

	assert.Empty(t, FindContours(nil, 1))
	assert.Empty(t, FindContours(image.NewGray(image.Rect(0, 0, 10, 10)), 1))
}

func TestDetectQuad_Rectangle(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 150))
	outlineRect(img, 20, 30, 170, 120)

	quad, det, err := DetectQuad(img, DefaultParams())
	require.NoError(t, err)
	require.NotNil(t, det)

	assert.Equal(t, utils.Point{X: 20, Y: 30}, quad.TopLeft)
	assert.Equal(t, utils.Point{X: 170, Y: 30}, quad.TopRight)
	assert.Equal(t, utils.Point{X: 20, Y: 120}, quad.BottomLeft)
	assert.Equal(t, utils.Point{X: 170, Y: 120}, quad.BottomRight)
	assert.Equal(t, 1, det.ContoursFound)
	assert.Equal(t, 0, det.Candidate)
	assert.Len(t, det.Approx, 4)
	assert.InDelta(t, 150.0*90.0, det.Area, 1e-9)
}

func TestDetectQuad_ClosesSmallGaps(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 150))
	outlineRect(img, 20, 30, 170, 120)
	img.SetGray(100, 30, color.Gray{})
	img.SetGray(101, 30, color.Gray{})

	quad, _, err := DetectQuad(img, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, utils.Point{X: 20, Y: 30}, quad.TopLeft)
	assert.Equal(t, utils.Point{X: 170, Y: 120}, quad.BottomRight)
}

func TestDetectQuad_PicksLargestQuad(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 300, 200))
	outlineRect(img, 10, 10, 40, 40)
	outlineRect(img, 80, 20, 280, 180)

	quad, det, err := DetectQuad(img, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2, det.ContoursFound)
	assert.Equal(t, utils.Point{X: 80, Y: 20}, quad.TopLeft)
	assert.Equal(t, utils.Point{X: 280, Y: 180}, quad.BottomRight)
}

func TestDetectQuad_NoDocument(t *testing.T) {
	empty := image.NewGray(image.Rect(0, 0, 100, 100))
	_, det, err := DetectQuad(empty, DefaultParams())
	require.Error(t, err)
	assert.Nil(t, det)
	require.ErrorIs(t, err, ErrNoDocumentFound)
	assert.Equal(t, common.KindNoDocumentFound, common.KindOf(err))
	assert.Equal(t, "detect", common.StageOf(err))

	tri := image.NewGray(image.Rect(0, 0, 200, 160))
	utils.DrawPolygon(tri, []utils.Point{{X: 20, Y: 20}, {X: 180, Y: 20}, {X: 100, Y: 140}}, color.Gray{Y: 255}, 1)
	_, _, err = DetectQuad(tri, DefaultParams())
	require.ErrorIs(t, err, ErrNoDocumentFound)
}

func TestDetectQuad_InvalidParams(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for _, p := range []Params{
		{EpsilonCoeff: 0, Closed: true, MaxCandidates: 5},
		{EpsilonCoeff: 0.02, Closed: true, MaxCandidates: 0},
		{EpsilonCoeff: 0.02, Closed: true, MaxCandidates: 5, CloseIterations: -1},
	} {
		_, _, err := DetectQuad(img, p)
		require.ErrorIs(t, err, ErrInvalidParams)
		assert.Equal(t, common.KindInvalidConfig, common.KindOf(err))
	}
}

func TestDetectQuad_AxisAlignedRectangles(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("outline corners are recovered exactly", prop.ForAll(
		func(x0, y0, w, h int) bool {
			img := image.NewGray(image.Rect(0, 0, 240, 240))
			outlineRect(img, x0, y0, x0+w, y0+h)
			q, _, err := DetectQuad(img, DefaultParams())
			if err != nil {
				return false
			}
			return q.TopLeft == utils.Point{X: float64(x0), Y: float64(y0)} &&
				q.BottomRight == utils.Point{X: float64(x0 + w), Y: float64(y0 + h)} &&
				q.TopRight == utils.Point{X: float64(x0 + w), Y: float64(y0)} &&
				q.BottomLeft == utils.Point{X: float64(x0), Y: float64(y0 + h)}
		},
		gen.IntRange(2, 60),
		gen.IntRange(2, 60),
		gen.IntRange(30, 170),
		gen.IntRange(30, 170),
	))

	properties.TestingRun(t)
}
