package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LocationMarker",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"location":     &graphql.Field{Type: geoPointType},
			"type":         &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"phone":        &graphql.Field{Type: graphql.String},
			"waiting_time": &graphql.Field{Type: graphql.Float},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"location":     &graphql.Field{Type: geoPointType},
			"type":         &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"description":  &graphql.Field{Type: graphql.String},
			"operator":     &graphql.Field{Type: graphql.String},
			"address":      &graphql.Field{Type: graphql.String},
			"phone":        &graphql.Field{Type: graphql.String},
			"waiting_time": &graphql.Field{Type: graphql.Float},
			"created_at":   &graphql.Field{Type: graphql.DateTime},
			"updated_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	iconType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Icon",
		Fields: graphql.Fields{
			"url":   &graphql.Field{Type: graphql.String},
			"html":  &graphql.Field{Type: graphql.String},
			"class": &graphql.Field{Type: graphql.String},
		},
	})

	renderItemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RenderItem",
		Fields: graphql.Fields{
			"kind":     &graphql.Field{Type: graphql.String},
			"id":       &graphql.Field{Type: graphql.String},
			"position": &graphql.Field{Type: geoPointType},
			"count":    &graphql.Field{Type: graphql.Int},
			"icon":     &graphql.Field{Type: iconType},
			"marker":   &graphql.Field{Type: markerType},
			"members":  &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	activeMarkerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ActiveMarker",
		Fields: graphql.Fields{
			"position":  &graphql.Field{Type: geoPointType},
			"source":    &graphql.Field{Type: graphql.String},
			"marker_id": &graphql.Field{Type: graphql.String},
		},
	})

	selectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Selection",
		Fields: graphql.Fields{
			"state":        &graphql.Field{Type: graphql.String},
			"active":       &graphql.Field{Type: activeMarkerType},
			"context_menu": &graphql.Field{Type: graphql.Boolean},
		},
	})

	viewportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: geoPointType},
			"zoom":   &graphql.Field{Type: graphql.Int},
		},
	})

	controlsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Controls",
		Fields: graphql.Fields{
			"visible":   &graphql.Field{Type: graphql.Boolean},
			"gps_fixed": &graphql.Field{Type: graphql.Boolean},
		},
	})

	frameType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Frame",
		Fields: graphql.Fields{
			"session_id":    &graphql.Field{Type: graphql.String},
			"viewport":      &graphql.Field{Type: viewportType},
			"items":         &graphql.Field{Type: graphql.NewList(renderItemType)},
			"selection":     &graphql.Field{Type: selectionType},
			"context_popup": &graphql.Field{Type: geoPointType},
			"controls":      &graphql.Field{Type: controlsType},
		},
	})

	boundsArgs := graphql.FieldConfigArgument{
		"north": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"east":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"south": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		"west":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
	}
	boundsFromArgs := func(args map[string]interface{}) (domain.MapBounds, error) {
		b := domain.NewMapBounds(
			args["north"].(float64), args["east"].(float64),
			args["south"].(float64), args["west"].(float64),
		)
		return b, b.Validate()
	}

	clusterArgs := graphql.FieldConfigArgument{
		"zoom": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
	}
	for k, v := range boundsArgs {
		clusterArgs[k] = v
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"locations": &graphql.Field{
				Type:        graphql.NewList(markerType),
				Description: "Markers inside a bounding box",
				Args:        boundsArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, err := boundsFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					return deps.Markers.FetchMarkers(p.Context, b)
				},
			},
			"clusters": &graphql.Field{
				Type:        graphql.NewList(renderItemType),
				Description: "Markers inside a bounding box, clustered for a zoom level",
				Args:        clusterArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					b, err := boundsFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					zoom := p.Args["zoom"].(int)
					if zoom < 0 || zoom > maxZoom {
						return nil, fmt.Errorf("zoom must be between 0 and %d", maxZoom)
					}
					markers, err := deps.Markers.FetchMarkers(p.Context, b)
					if err != nil {
						return nil, err
					}
					return deps.Sessions.Presenter().Present(markers, zoom), nil
				},
			},
			"location": &graphql.Field{
				Type:        locationType,
				Description: "Get a location by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Locations == nil {
						return nil, nil
					}
					return deps.Locations.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"session": &graphql.Field{
				Type:        frameType,
				Description: "Current frame of a map session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return s.Frame(), nil
				},
			},
			"locationTypes": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Known location types",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return domain.LocationTypes, nil
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
		// This would be a programming error in the schema definition
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
