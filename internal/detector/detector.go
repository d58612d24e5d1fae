// Package detector finds the document outline in an edge map: it traces the
// outer boundaries of connected edge components, reduces the largest ones
// with Douglas-Peucker and accepts the first four-vertex polygon.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

const stage = "detect"

var (
	// ErrNoDocumentFound is returned when no candidate reduces to four vertices.
	ErrNoDocumentFound = errors.New("no four-cornered contour found")
	// ErrInvalidParams is returned for out-of-range detection parameters.
	ErrInvalidParams = errors.New("invalid detector parameters")
)

// Params controls candidate selection and polygon reduction.
type Params struct {
	EpsilonCoeff    float64 // tolerance as a fraction of the contour perimeter
	Closed          bool    // reduce as a closed ring
	MaxCandidates   int     // largest contours examined
	CloseIterations int     // morphological closing passes before tracing
}

// DefaultParams returns the default detection parameters.
func DefaultParams() Params {
	return Params{
		EpsilonCoeff:    0.02,
		Closed:          true,
		MaxCandidates:   5,
		CloseIterations: 1,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.EpsilonCoeff <= 0 || p.EpsilonCoeff >= 1:
		return fmt.Errorf("%w: epsilon coefficient %.3f outside (0,1)", ErrInvalidParams, p.EpsilonCoeff)
	case p.MaxCandidates < 1:
		return fmt.Errorf("%w: max candidates %d < 1", ErrInvalidParams, p.MaxCandidates)
	case p.CloseIterations < 0:
		return fmt.Errorf("%w: close iterations %d < 0", ErrInvalidParams, p.CloseIterations)
	}
	return nil
}

// Detection describes how the accepted quadrilateral was found.
type Detection struct {
	ContoursFound int           `json:"contours_found"`
	Candidate     int           `json:"candidate"` // index among the area-ranked candidates
	Area          float64       `json:"area"`
	Epsilon       float64       `json:"epsilon"`
	Contour       Contour       `json:"-"`
	Approx        []utils.Point `json:"approx"`
}

// FindContours traces the outer boundary of every connected edge component,
// after closing small gaps in the edge map.
func FindContours(edges *image.Gray, closeIterations int) []Contour {
	if edges == nil {
		return nil
	}
	mask, w, h := edgeMask(edges)
	if w == 0 || h == 0 {
		return nil
	}
	mask = closeMask(mask, w, h, closeIterations)
	return findContours(mask, w, h)
}

// DetectQuad locates the document quadrilateral in an edge map. Candidates
// are the MaxCandidates largest contours by enclosed area; each is simplified
// with epsilon = EpsilonCoeff * perimeter and the first one with exactly four
// vertices wins. Its corners are labelled with utils.OrderCorners.
func DetectQuad(edges *image.Gray, p Params) (utils.Quad, *Detection, error) {
	if err := p.Validate(); err != nil {
		return utils.Quad{}, nil, common.NewError(common.KindInvalidConfig, stage, err)
	}

	contours := FindContours(edges, p.CloseIterations)
	candidates := largestContours(contours, p.MaxCandidates)

	for i, c := range candidates {
		eps := p.EpsilonCoeff * c.Perimeter()
		var approx []utils.Point
		if p.Closed {
			approx = utils.SimplifyClosedPolygon(c.Points, eps)
		} else {
			approx = utils.SimplifyPolygon(c.Points, eps)
		}
		slog.Debug("contour candidate",
			"index", i, "points", len(c.Points), "area", c.Area(), "vertices", len(approx))
		if len(approx) != 4 {
			continue
		}

		quad := utils.OrderCorners([4]utils.Point{approx[0], approx[1], approx[2], approx[3]})
		return quad, &Detection{
			ContoursFound: len(contours),
			Candidate:     i,
			Area:          c.Area(),
			Epsilon:       eps,
			Contour:       c,
			Approx:        approx,
		}, nil
	}

	return utils.Quad{}, nil, common.NewError(common.KindNoDocumentFound, stage,
		fmt.Errorf("%w among %d contours", ErrNoDocumentFound, len(contours)))
}
