// Package opsfeed provides a client for the airline flight operations feed.
package opsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/delaycast/delaycast/internal/flights"
	"github.com/delaycast/delaycast/internal/ingestion/resilience"
)

const (
	// FeedName identifies this feed for circuit breaker naming and
	// health tracking.
	FeedName = "opsfeed"

	// dateLayout is the window boundary format accepted by the feed.
	dateLayout = "2006-01-02"
)

// RequestMetrics records the outcome of feed requests.
// Satisfied by middleware.ProviderMetrics.
type RequestMetrics interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ClientConfig holds configuration for the operations feed client.
type ClientConfig struct {
	// BaseURL is the feed base URL (required, the feed is internal and
	// has no public default).
	BaseURL string

	// APIKey authenticates requests via the X-Api-Key header.
	APIKey string

	// HTTPClient overrides the transport. Leave nil to get a
	// resilience.Client with retries and a circuit breaker.
	HTTPClient HTTPDoer

	// Timeout for individual feed requests (default: 15s).
	Timeout time.Duration

	// Registry is the feed registry for health tracking. Only consulted
	// when HTTPClient is nil.
	Registry *resilience.Registry

	// Metrics records per-request metrics (optional).
	Metrics RequestMetrics
}

// HTTPDoer issues HTTP requests. Both http.Client and
// resilience.Client satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an operations feed client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	metrics    RequestMetrics
}

// NewClient creates a new operations feed client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            FeedName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

// Feed response types. Field names follow the house format of the
// operations data warehouse, Fecha-I/Fecha-O included.

type flightsResponse struct {
	Pagination paginationInfo `json:"pagination"`
	Data       []flightRow    `json:"data"`
}

type flightRow struct {
	Opera        string `json:"OPERA"`
	TipoVuelo    string `json:"TIPOVUELO"`
	Mes          int    `json:"MES"`
	FlightNumber string `json:"Vlo-I"`
	ScheduledAt  string `json:"Fecha-I"`
	DepartedAt   string `json:"Fecha-O"`
}

type paginationInfo struct {
	CurrentPage  int `json:"current_page"`
	LastPage     int `json:"last_page"`
	PerPage      int `json:"per_page"`
	TotalRecords int `json:"total_records"`
}

// FetchFlights retrieves all flight operations scheduled inside the
// [from, to] window, walking feed pagination to the last page.
func (c *Client) FetchFlights(ctx context.Context, from, to time.Time) ([]flights.Record, error) {
	var allRecords []flights.Record
	page := 1

	for {
		records, lastPage, err := c.fetchFlightsPage(ctx, from, to, page)
		if err != nil {
			return nil, err
		}
		allRecords = append(allRecords, records...)

		if page >= lastPage {
			break
		}
		page++
	}

	return allRecords, nil
}

// fetchFlightsPage fetches a single page of flight operations.
func (c *Client) fetchFlightsPage(ctx context.Context, from, to time.Time, page int) ([]flights.Record, int, error) {
	url := fmt.Sprintf("%s/flights?from=%s&to=%s&page=%d",
		c.baseURL, from.Format(dateLayout), to.Format(dateLayout), page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("flights", start, err)
		return nil, 0, fmt.Errorf("fetch flights: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status %d from flights endpoint", resp.StatusCode)
		c.observe("flights", start, err)
		return nil, 0, err
	}

	var result flightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.observe("flights", start, err)
		return nil, 0, fmt.Errorf("decode flights response: %w", err)
	}
	c.observe("flights", start, nil)

	records := make([]flights.Record, 0, len(result.Data))
	for _, row := range result.Data {
		records = append(records, toRecord(&row))
	}

	return records, result.Pagination.LastPage, nil
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordRequest(FeedName, operation, time.Since(start), err)
}

// toRecord converts a feed row to a domain Record. Fields are carried
// as delivered; validation happens at ingestion time.
func toRecord(row *flightRow) flights.Record {
	return flights.Record{
		Opera:        row.Opera,
		TipoVuelo:    row.TipoVuelo,
		Mes:          row.Mes,
		FlightNumber: row.FlightNumber,
		ScheduledAt:  row.ScheduledAt,
		DepartedAt:   row.DepartedAt,
	}
}
