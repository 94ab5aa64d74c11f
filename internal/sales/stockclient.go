package sales

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drblury/stocksync/internal/event"
	"github.com/drblury/stocksync/internal/jsoncodec"
	"github.com/drblury/stocksync/internal/logging"
)

// StockChecker looks a product up in the stock service. A nil snapshot with a
// nil error means the product does not exist.
type StockChecker interface {
	Product(ctx context.Context, productID int64) (*event.ProductSnapshot, error)
}

// HTTPStockClient queries the stock service's REST API.
type HTTPStockClient struct {
	base   string
	client *http.Client
	log    logging.ServiceLogger
}

// NewHTTPStockClient builds a client for the stock service at base, e.g.
// http://stock:8081. A nil httpClient gets a 10s timeout default.
func NewHTTPStockClient(base string, httpClient *http.Client, log logging.ServiceLogger) *HTTPStockClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &HTTPStockClient{base: base, client: httpClient, log: log}
}

func (c *HTTPStockClient) Product(ctx context.Context, productID int64) (*event.ProductSnapshot, error) {
	url := fmt.Sprintf("%s/produtos/%d", c.base, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("sales: build stock request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sales: query stock service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.log.Warn("product not found in stock service", logging.LogFields{"product_id": productID})
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("sales: stock service returned %d for product %d", resp.StatusCode, productID)
	}

	var product event.ProductSnapshot
	if err := jsoncodec.Decode(resp.Body, &product); err != nil {
		return nil, fmt.Errorf("sales: decode stock response: %w", err)
	}
	return &product, nil
}
