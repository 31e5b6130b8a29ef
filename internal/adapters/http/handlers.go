package http

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

// RegionHandler returns the configured region of interest and its channels.
func RegionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region := deps.Interactive.Region()
		return c.JSON(fiber.Map{
			"region":   region,
			"center":   region.Center(),
			"channels": deps.Channels,
		})
	}
}

// CreateSessionHandler classifies an uploaded image and opens a session.
// The image is the multipart field "image". The optional form fields
// min_lat, max_lat, min_lon and max_lon override the region for this
// session and must be given together.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return errBadRequest(c, "multipart field \"image\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return errBadRequest(c, "cannot open uploaded image")
		}
		defer f.Close()
		image, err := io.ReadAll(f)
		if err != nil {
			return errBadRequest(c, "cannot read uploaded image")
		}
		if len(image) == 0 {
			return errBadRequest(c, "uploaded image is empty")
		}

		region, err := formRegion(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		sess, err := deps.Interactive.Classify(c.UserContext(), usecases.ClassifyInput{
			Image:    image,
			Filename: fh.Filename,
			Region:   region,
		})
		if err != nil {
			return errFrom(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

// GetSessionHandler returns a session by ID.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Interactive.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(sess)
	}
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// SubmitLocationHandler places a classified fire and checks it against the region.
func SubmitLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		sess, err := deps.Interactive.SubmitCoordinates(c.UserContext(), c.Params("id"),
			domain.Coordinate{Lat: *req.Lat, Lon: *req.Lon})
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(sess)
	}
}

// ConfirmSessionHandler dispatches the session's alert.
func ConfirmSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Interactive.Confirm(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(sess)
	}
}

// CancelSessionHandler abandons a session without sending anything.
func CancelSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Interactive.Cancel(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(sess)
	}
}

// BatchRunHandler runs one batch pass over the configured feed.
func BatchRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Batch == nil {
			return errUnavailable(c, "batch feed not configured")
		}
		res, err := deps.Batch.Run(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(res)
	}
}

type tilesRequest struct {
	MinLon      *float64 `json:"min_lon"`
	MinLat      *float64 `json:"min_lat"`
	MaxLon      *float64 `json:"max_lon"`
	MaxLat      *float64 `json:"max_lat"`
	ResolutionM float64  `json:"resolution_m"`
	MaxPixels   int      `json:"max_pixels"`
}

// TilesHandler previews the tile plan for an area of interest.
func TilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tilesRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.MinLon == nil || req.MinLat == nil || req.MaxLon == nil || req.MaxLat == nil {
			return errBadRequest(c, "min_lon, min_lat, max_lon and max_lat are required")
		}
		if req.ResolutionM == 0 {
			req.ResolutionM = deps.Tiling.ResolutionM
		}
		if req.MaxPixels == 0 {
			req.MaxPixels = deps.Tiling.MaxPixels
		}

		aoi, err := domain.NewGeoRegion(*req.MinLat, *req.MaxLat, *req.MinLon, *req.MaxLon)
		if err != nil {
			return errFrom(c, err)
		}
		plans, err := usecases.PlanTiles(aoi, req.ResolutionM, req.MaxPixels, deps.Tiling.MaxTiles)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(fiber.Map{
			"resolution_m": req.ResolutionM,
			"max_pixels":   req.MaxPixels,
			"count":        len(plans),
			"tiles":        plans,
		})
	}
}

// RecentDetectionsHandler lists the most recent detections.
func RecentDetectionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.History == nil {
			return errUnavailable(c, "history not configured")
		}
		limit := queryLimit(c)
		recs, err := deps.History.RecentDetections(c.UserContext(), limit)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(ListResponse{Data: recs, Limit: limit, Count: len(recs)})
	}
}

// RecentDispatchesHandler lists the most recent dispatch reports.
func RecentDispatchesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.History == nil {
			return errUnavailable(c, "history not configured")
		}
		limit := queryLimit(c)
		reports, err := deps.History.RecentDispatches(c.UserContext(), limit)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(ListResponse{Data: reports, Limit: limit, Count: len(reports)})
	}
}

var regionFields = [4]string{"min_lat", "max_lat", "min_lon", "max_lon"}

func formRegion(c *fiber.Ctx) (*domain.GeoRegion, error) {
	var vals [4]float64
	given := 0
	for i, name := range regionFields {
		raw := c.FormValue(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: not a number", name)
		}
		vals[i] = v
		given++
	}
	switch given {
	case 0:
		return nil, nil
	case len(regionFields):
		r := domain.GeoRegion{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}
		return &r, nil
	}
	return nil, errors.New("min_lat, max_lat, min_lon and max_lon must be given together")
}
