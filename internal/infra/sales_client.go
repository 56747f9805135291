package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneycase/internal/repository"
)

// SalesClient reads accrued sales totals from the ordering service over HTTP.
// Calls go through a circuit breaker so an unreachable ordering service makes
// closes fail fast instead of hanging on timeouts.
//
//	GET {base}/v1/branches/{id}/sales/totals?from=RFC3339Nano&to=RFC3339Nano
//
// The window is [from, to); the ordering service must exclude sales stamped at to.
//	200 {"subtotal":"300.00","service_fee":"30.00","transaction_count":12,"order_count":9}
type SalesClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

func NewSalesClient(baseURL string, timeout time.Duration, breaker *CircuitBreaker) *SalesClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCBConfig("sales"))
	}
	return &SalesClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// Totals implements service.SalesSource.
func (c *SalesClient) Totals(ctx context.Context, branchID int64, from, to time.Time) (repository.SalesTotals, error) {
	var out repository.SalesTotals
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		t, err := c.fetch(ctx, branchID, from, to)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (c *SalesClient) fetch(ctx context.Context, branchID int64, from, to time.Time) (repository.SalesTotals, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339Nano))
	q.Set("to", to.UTC().Format(time.RFC3339Nano))
	endpoint := c.baseURL + "/v1/branches/" + strconv.FormatInt(branchID, 10) + "/sales/totals?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return repository.SalesTotals{}, fmt.Errorf("sales: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return repository.SalesTotals{}, fmt.Errorf("sales: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return repository.SalesTotals{}, fmt.Errorf("sales: service returned %d", resp.StatusCode)
	}

	var result repository.SalesTotals
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return repository.SalesTotals{}, fmt.Errorf("sales: decode response: %w", err)
	}
	if result.Subtotal.IsNegative() || result.ServiceFee.IsNegative() ||
		result.TransactionCount < 0 || result.OrderCount < 0 {
		return repository.SalesTotals{}, fmt.Errorf("sales: negative totals for branch %d", branchID)
	}
	return result, nil
}
