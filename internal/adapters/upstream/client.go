package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// Client is a MarkerProvider backed by another TrailMap API.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a client for baseURL, e.g. "https://trailmap.example.org".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "trailmap-upstream",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying fasthttp client.
func (c *Client) WithHTTPClient(hc *fasthttp.Client) *Client {
	c.http = hc
	return c
}

// FetchMarkers implements ports.MarkerProvider.
func (c *Client) FetchMarkers(ctx context.Context, b domain.MapBounds) ([]domain.LocationMarker, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/locations")
	args := req.URI().QueryArgs()
	args.Set("north", formatCoord(b.NorthEast.Lat))
	args.Set("east", formatCoord(b.NorthEast.Lon))
	args.Set("south", formatCoord(b.SouthWest.Lat))
	args.Set("west", formatCoord(b.SouthWest.Lon))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", status)
	}

	var markers []domain.LocationMarker
	if err := json.Unmarshal(resp.Body(), &markers); err != nil {
		return nil, fmt.Errorf("decode upstream markers: %w", err)
	}
	return markers, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
