package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/sentinel"
)

// Client talks to the product service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a catalog client against the product service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type productResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID                id.ProductID    `json:"id"`
		FarmID            id.FarmID       `json:"farmId"`
		UnitPrice         decimal.Decimal `json:"unitPrice"`
		AvailableQuantity int             `json:"availableQuantity"`
	} `json:"data"`
}

func (c *Client) GetProduct(ctx context.Context, productID id.ProductID) (Product, error) {
	url := fmt.Sprintf("%s/products/%s", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Product{}, fmt.Errorf("build product request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Product{}, sentinel.ErrTimeout
		}
		return Product{}, fmt.Errorf("%w: product service: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Product{}, sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return Product{}, fmt.Errorf("%w: product service status %d", sentinel.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Product{}, fmt.Errorf("product service status %d", resp.StatusCode)
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Product{}, fmt.Errorf("decode product response: %w", err)
	}

	return Product{
		ID:                body.Data.ID,
		FarmID:            body.Data.FarmID,
		UnitPrice:         body.Data.UnitPrice,
		AvailableQuantity: body.Data.AvailableQuantity,
	}, nil
}
