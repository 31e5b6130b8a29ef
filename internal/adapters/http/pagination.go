package http

import "github.com/gofiber/fiber/v2"

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ListResponse wraps history results with the limit that was applied.
type ListResponse struct {
	Data  interface{} `json:"data"`
	Limit int         `json:"limit"`
	Count int         `json:"count"`
}

// queryLimit reads ?limit= and clamps it to [1, maxLimit].
func queryLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
