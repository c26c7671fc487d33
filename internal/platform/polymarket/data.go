package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/whalewatch/engine/internal/domain"
)

// DataClient is the REST client for the Polymarket Data API, which serves
// the historical trade log and per-wallet positions. Both endpoints are
// unauthenticated reads.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TradeQuery narrows a trade-log request. Zero fields are omitted from the
// request entirely.
type TradeQuery struct {
	AssetID string
	After   time.Time
	Before  time.Time
	Limit   int
}

// ListTrades returns historical trade records matching the query, newest
// first as the API serves them.
func (d *DataClient) ListTrades(ctx context.Context, q TradeQuery) ([]APITradeRecord, error) {
	params := url.Values{}
	if q.AssetID != "" {
		params.Set("asset_id", q.AssetID)
	}
	if !q.After.IsZero() {
		params.Set("after", strconv.FormatInt(q.After.Unix(), 10))
	}
	if !q.Before.IsZero() {
		params.Set("before", strconv.FormatInt(q.Before.Unix(), 10))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	params.Set("limit", strconv.Itoa(limit))

	path := "/trades?" + params.Encode()

	body, err := d.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: list trades: %w", err)
	}

	var records []APITradeRecord
	if err := json.Unmarshal(unwrapData(body), &records); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode trades: %w", err)
	}

	return records, nil
}

// ListPositions returns the open positions held by a wallet.
func (d *DataClient) ListPositions(ctx context.Context, wallet string) ([]domain.Position, error) {
	params := url.Values{}
	params.Set("user", wallet)

	path := "/positions?" + params.Encode()

	body, err := d.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: list positions for %s: %w", wallet, err)
	}

	var apiPositions []APIPosition
	if err := json.Unmarshal(unwrapData(body), &apiPositions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(apiPositions))
	for i := range apiPositions {
		positions = append(positions, apiPositions[i].ToDomain())
	}

	return positions, nil
}

// doGet sends an unauthenticated GET request to the Data API.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
