package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

var errHistoryUnavailable = errors.New("history not configured")

// buildSchema creates the read-only GraphQL schema. Fields resolve through
// the json tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	regionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Region",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
			"center": &graphql.Field{
				Type: coordinateType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if r, ok := p.Source.(domain.GeoRegion); ok {
						return r.Center(), nil
					}
					return nil, nil
				},
			},
		},
	})

	detectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Detection",
		Fields: graphql.Fields{
			"source_id":  &graphql.Field{Type: graphql.String},
			"coordinate": &graphql.Field{Type: coordinateType},
			"label":      &graphql.Field{Type: graphql.String},
			"confidence": &graphql.Field{Type: graphql.Float},
			"timestamp":  &graphql.Field{Type: graphql.DateTime},
		},
	})

	outcomeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ChannelOutcome",
		Fields: graphql.Fields{
			"channel":     &graphql.Field{Type: graphql.String},
			"attempted":   &graphql.Field{Type: graphql.Boolean},
			"succeeded":   &graphql.Field{Type: graphql.Boolean},
			"error":       &graphql.Field{Type: graphql.String},
			"provider_id": &graphql.Field{Type: graphql.String},
		},
	})

	dispatchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DispatchReport",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"fires":        &graphql.Field{Type: graphql.Int},
			"source_ids":   &graphql.Field{Type: graphql.NewList(graphql.String)},
			"outcomes":     &graphql.Field{Type: graphql.NewList(outcomeType)},
			"started_at":   &graphql.Field{Type: graphql.DateTime},
			"completed_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"state":      &graphql.Field{Type: graphql.String},
			"filename":   &graphql.Field{Type: graphql.String},
			"region":     &graphql.Field{Type: regionType},
			"label":      &graphql.Field{Type: graphql.String},
			"confidence": &graphql.Field{Type: graphql.Float},
			"coordinate": &graphql.Field{Type: coordinateType},
			"in_region":  &graphql.Field{Type: graphql.Boolean},
			"report":     &graphql.Field{Type: dispatchType},
			"outcome":    &graphql.Field{Type: graphql.String},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	tileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TilePlan",
		Fields: graphql.Fields{
			"index": &graphql.Field{Type: graphql.Int},
			"bbox": &graphql.Field{
				Type: graphql.NewList(graphql.Float),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if t, ok := p.Source.(usecases.TilePlan); ok {
						return t.BBox[:], nil
					}
					return nil, nil
				},
			},
			"width":  &graphql.Field{Type: graphql.Int},
			"height": &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"region": &graphql.Field{
				Type:        regionType,
				Description: "The configured region of interest",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Interactive.Region(), nil
				},
			},
			"detections": &graphql.Field{
				Type:        graphql.NewList(detectionType),
				Description: "Most recent detections",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.History == nil {
						return nil, errHistoryUnavailable
					}
					return deps.History.RecentDetections(p.Context, p.Args["limit"].(int))
				},
			},
			"dispatches": &graphql.Field{
				Type:        graphql.NewList(dispatchType),
				Description: "Most recent dispatch reports",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.History == nil {
						return nil, errHistoryUnavailable
					}
					return deps.History.RecentDispatches(p.Context, p.Args["limit"].(int))
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "An interactive session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Interactive.Get(p.Context, p.Args["id"].(string))
				},
			},
			"tiles": &graphql.Field{
				Type:        graphql.NewList(tileType),
				Description: "Tile plan for an area of interest",
				Args: graphql.FieldConfigArgument{
					"min_lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"resolution_m": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: deps.Tiling.ResolutionM},
					"max_pixels":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: deps.Tiling.MaxPixels},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					aoi, err := domain.NewGeoRegion(
						p.Args["min_lat"].(float64), p.Args["max_lat"].(float64),
						p.Args["min_lon"].(float64), p.Args["max_lon"].(float64),
					)
					if err != nil {
						return nil, err
					}
					return usecases.PlanTiles(aoi, p.Args["resolution_m"].(float64), p.Args["max_pixels"].(int), deps.Tiling.MaxTiles)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
