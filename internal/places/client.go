// Package places is the HTTP client for the paid Places API (New).
// It performs requests only; admission and consumption accounting are
// the caller's job.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/metrics"
	"github.com/thisis/placesguard/internal/place"
)

// Endpoint labels used in errors and metrics.
const (
	EndpointPhoto        = "places:photo"
	EndpointAutocomplete = "places:autocomplete"
	EndpointNearby       = "places:searchNearby"
)

// ProviderLabel is appended to every remote photo attribution.
const ProviderLabel = "Google"

const (
	maxResultCount  = 20
	maxRadiusMeters = 50000.0
	earthRadiusM    = 6371000.0
	maxErrorBody    = 4 << 10
)

const nearbyFieldMask = "places.id,places.displayName,places.types,places.location,places.photos"

// Prediction is one autocomplete suggestion.
type Prediction struct {
	PlaceID string `json:"place_id"`
	Text    string `json:"text"`
}

// Client talks to the Places API.
type Client struct {
	baseURL    string
	apiKey     string
	maxWidth   int
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from configuration.
func New(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.PlacesBaseURL, "/"),
		apiKey:     cfg.PlacesAPIKey,
		maxWidth:   cfg.PhotoMaxWidth,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxWidth returns the configured photo width.
func (c *Client) MaxWidth() int {
	return c.maxWidth
}

// mediaURL builds the keyless media URL for a photo handle. The key is
// sent as a header.
func (c *Client) mediaURL(h place.PhotoHandle, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = c.maxWidth
	}
	q := url.Values{}
	q.Set("maxWidthPx", strconv.Itoa(maxWidth))
	q.Set("skipHttpRedirect", "true")
	return fmt.Sprintf("%s/%s/media?%s", c.baseURL, strings.TrimLeft(h.Name, "/"), q.Encode())
}

type mediaResponse struct {
	Name     string `json:"name"`
	PhotoURI string `json:"photoUri"`
}

// PhotoURI resolves a photo handle to a short-lived image URI with one
// billable media request. The returned URI carries no key and fetching it
// is not billed by the provider.
func (c *Client) PhotoURI(ctx context.Context, h place.PhotoHandle, maxWidth int) (string, error) {
	if strings.TrimSpace(h.Name) == "" {
		return "", errors.NewInvalidRequest("photo name is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mediaURL(h, maxWidth), nil)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid photo name: %v", err))
	}
	if c.apiKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
	}

	resp, err := c.do(req, EndpointPhoto)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.NewNetworkFailure(EndpointPhoto, fmt.Errorf("decode response: %w", err))
	}
	u, err := url.Parse(out.PhotoURI)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", errors.NewNetworkFailure(EndpointPhoto, fmt.Errorf("invalid photoUri %q", out.PhotoURI))
	}
	return out.PhotoURI, nil
}

type autocompleteRequest struct {
	Input        string `json:"input"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type autocompleteResponse struct {
	Suggestions []struct {
		PlacePrediction *struct {
			PlaceID string `json:"placeId"`
			Text    struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"placePrediction"`
	} `json:"suggestions"`
}

// Autocomplete requests predictions for input, billed to the session token.
func (c *Client) Autocomplete(ctx context.Context, input, sessionToken string) ([]Prediction, error) {
	var out autocompleteResponse
	body := autocompleteRequest{Input: input, SessionToken: sessionToken}
	if err := c.postJSON(ctx, EndpointAutocomplete, "/places:autocomplete", "", body, &out); err != nil {
		return nil, err
	}

	preds := make([]Prediction, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s.PlacePrediction == nil {
			continue
		}
		preds = append(preds, Prediction{
			PlaceID: s.PlacePrediction.PlaceID,
			Text:    s.PlacePrediction.Text.Text,
		})
	}
	return preds, nil
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type nearbyRequest struct {
	MaxResultCount      int `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center latLng  `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type nearbyResponse struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		Types    []string `json:"types"`
		Location latLng   `json:"location"`
		Photos   []struct {
			Name               string `json:"name"`
			AuthorAttributions []struct {
				DisplayName string `json:"displayName"`
			} `json:"authorAttributions"`
		} `json:"photos"`
	} `json:"places"`
}

// SearchNearby returns places inside the circle that covers b.
func (c *Client) SearchNearby(ctx context.Context, b place.Bounds) ([]place.Place, error) {
	if !b.Valid() {
		return nil, errors.NewInvalidRequest("invalid bounds")
	}

	var body nearbyRequest
	body.MaxResultCount = maxResultCount
	lat, lng := b.Center()
	body.LocationRestriction.Circle.Center = latLng{Latitude: lat, Longitude: lng}
	body.LocationRestriction.Circle.Radius = radiusFor(b)

	var out nearbyResponse
	if err := c.postJSON(ctx, EndpointNearby, "/places:searchNearby", nearbyFieldMask, body, &out); err != nil {
		return nil, err
	}

	result := make([]place.Place, 0, len(out.Places))
	for _, p := range out.Places {
		pl := place.Place{
			ID:       p.ID,
			Name:     p.DisplayName.Text,
			Types:    p.Types,
			Lat:      p.Location.Latitude,
			Lng:      p.Location.Longitude,
			Category: CategoryFor(p.Types),
		}
		if len(p.Photos) > 0 {
			h := &place.PhotoHandle{Name: p.Photos[0].Name}
			for _, a := range p.Photos[0].AuthorAttributions {
				if a.DisplayName != "" {
					h.Attributions = append(h.Attributions, a.DisplayName)
				}
			}
			pl.Photo = h
		}
		result = append(result, pl)
	}
	return result, nil
}

// CategoryFor maps provider place types to a poster category. The first
// recognised type wins.
func CategoryFor(types []string) place.Category {
	for _, t := range types {
		switch {
		case t == "restaurant" || strings.HasSuffix(t, "_restaurant"):
			return place.Restaurant
		case t == "cafe" || t == "coffee_shop" || t == "bakery":
			return place.Cafe
		case t == "bar" || t == "night_club" || t == "pub":
			return place.Bar
		case t == "park" || t == "national_park" || t == "garden":
			return place.Park
		case t == "museum" || t == "art_gallery":
			return place.Museum
		case t == "store" || t == "shopping_mall" || strings.HasSuffix(t, "_store"):
			return place.Shop
		}
	}
	return place.Other
}

// radiusFor returns the half diagonal of b in meters, capped at the provider maximum.
func radiusFor(b place.Bounds) float64 {
	lat, lng := b.Center()
	r := haversine(lat, lng, b.North, b.East)
	if r > maxRadiusMeters {
		return maxRadiusMeters
	}
	if r < 1 {
		return 1
	}
	return r
}

func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

func (c *Client) postJSON(ctx context.Context, endpoint, path, fieldMask string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
	}
	if fieldMask != "" {
		req.Header.Set("X-Goog-FieldMask", fieldMask)
	}

	resp, err := c.do(req, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewNetworkFailure(endpoint, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// do sends req, records metrics and maps transport and status failures
// to NETWORK_FAILURE. On success the caller owns resp.Body.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ProviderDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		c.logger.Debug("provider request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, errors.NewNetworkFailure(endpoint, err)
	}

	metrics.ProviderRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		c.logger.Warn("provider returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", msg),
		)
		return nil, errors.NewNetworkFailure(endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp, nil
}
