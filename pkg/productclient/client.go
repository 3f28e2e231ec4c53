package productclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bakehouse/cart-service/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrProductNotFound is returned when the catalog has no such product.
var ErrProductNotFound = errors.New("product not found")

// Client talks to the product catalog service.
type Client interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CheckStock(ctx context.Context, productID uuid.UUID, quantity int) (*models.StockInfo, error)
	ValidateProducts(ctx context.Context, queries []ValidationQuery) ([]models.ProductValidation, error)
}

// ValidationQuery is one line of a batch availability/price check.
type ValidationQuery struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type productClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) Client {
	return &productClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *productClient) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product lookup failed with status: %d", resp.StatusCode)
	}

	var product models.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &product, nil
}

func (c *productClient) CheckStock(ctx context.Context, productID uuid.UUID, quantity int) (*models.StockInfo, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s/stock?quantity=%d", c.baseURL, productID, quantity)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stock check failed with status: %d", resp.StatusCode)
	}

	var stock models.StockInfo
	if err := json.NewDecoder(resp.Body).Decode(&stock); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &stock, nil
}

// ValidateProducts resolves availability, stock and current price for a batch
// of products in one round trip. Results come back in input order.
func (c *productClient) ValidateProducts(ctx context.Context, queries []ValidationQuery) ([]models.ProductValidation, error) {
	body, err := json.Marshal(queries)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/api/v1/products/validate"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product validation failed with status: %d", resp.StatusCode)
	}

	var results []models.ProductValidation
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return results, nil
}
