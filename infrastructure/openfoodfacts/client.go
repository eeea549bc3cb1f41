// Package openfoodfacts implements the product lookup port against the Open
// Food Facts public API.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

const (
	// DefaultBaseURL is the public Open Food Facts endpoint.
	DefaultBaseURL = "https://world.openfoodfacts.org"

	// defaultUserAgent identifies this service per the Open Food Facts API
	// usage guidelines.
	defaultUserAgent = "FoodGenie/1.0 (nutrition analysis)"

	// servingSuffix and unitSuffix are the nutriments field conventions for
	// per-serving amounts and their companion units.
	servingSuffix = "_serving"
	unitSuffix    = "_unit"
)

// Client implements ports.ProductLookup over the Open Food Facts v0 product
// API. The v0 read endpoint requires no authentication.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	log        *zap.Logger
}

var _ ports.ProductLookup = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests and regional mirrors.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an Open Food Facts product lookup client.
func NewClient(log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUserAgent,
		log:        log.Named("openfoodfacts"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// productEnvelope is the v0 product endpoint response. Status 0 means the
// database has no record for the barcode.
type productEnvelope struct {
	Status        int            `json:"status"`
	StatusVerbose string         `json:"status_verbose"`
	Product       productPayload `json:"product"`
}

type productPayload struct {
	ProductName     string         `json:"product_name"`
	Brands          string         `json:"brands"`
	IngredientsText string         `json:"ingredients_text"`
	Categories      string         `json:"categories"`
	ImageURL        string         `json:"image_url"`
	Nutriments      map[string]any `json:"nutriments"`
}

// Lookup fetches the product record for the barcode from the v0 product API.
// It returns ports.ErrProductNotFound when the database has no record.
func (c *Client) Lookup(ctx context.Context, barcode string) (*domain.BarcodeRecord, error) {
	url := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, barcode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ports.LookupError{Barcode: barcode, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ports.LookupError{Barcode: barcode, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, &ports.LookupError{Barcode: barcode, Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ports.LookupError{Barcode: barcode, Err: err}
	}

	var envelope productEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ports.LookupError{
			Barcode: barcode,
			Err:     fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err),
		}
	}

	if envelope.Status == 0 {
		return nil, &ports.LookupError{Barcode: barcode, Err: ports.ErrProductNotFound}
	}

	record := &domain.BarcodeRecord{
		Barcode:     barcode,
		ProductName: envelope.Product.ProductName,
		Brand:       envelope.Product.Brands,
		Ingredients: envelope.Product.IngredientsText,
		Categories:  envelope.Product.Categories,
		ImageURL:    envelope.Product.ImageURL,
		Nutrients:   parseNutriments(envelope.Product.Nutriments),
		FetchedAt:   time.Now().UTC(),
	}

	c.log.Debug("product resolved",
		zap.String("barcode", barcode),
		zap.String("product", record.ProductName),
		zap.Int("nutrients", len(record.Nutrients)))

	return record, nil
}

// classifyStatus maps HTTP status codes onto the shared lookup error
// vocabulary.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ports.ErrProductNotFound
	case code == http.StatusTooManyRequests:
		return ports.ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w: status %d", ports.ErrServiceUnavailable, code)
	default:
		return fmt.Errorf("%w: unexpected status %d", ports.ErrInvalidResponse, code)
	}
}

// parseNutriments extracts the per-serving amounts from the nutriments
// record. Fields follow the "<name>_serving" convention with an optional
// "<name>_unit" companion; fields without a numeric serving amount are
// skipped.
func parseNutriments(nutriments map[string]any) []domain.RawMeasurement {
	var measurements []domain.RawMeasurement

	for field, raw := range nutriments {
		name, ok := strings.CutSuffix(field, servingSuffix)
		if !ok || name == "" {
			continue
		}

		value, ok := numericValue(raw)
		if !ok {
			continue
		}

		unit := ""
		if u, ok := nutriments[name+unitSuffix].(string); ok {
			unit = u
		}

		measurements = append(measurements, domain.RawMeasurement{
			NutrientName: name,
			Value:        value,
			Unit:         unit,
		})
	}

	return measurements
}

// numericValue handles the API's habit of returning amounts as either JSON
// numbers or numeric strings.
func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
