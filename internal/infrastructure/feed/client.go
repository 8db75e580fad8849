package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tradenotifier/internal/config"
	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const maxErrorBody = 512

// Client reads executed trades of one hopper.
type Client struct {
	httpClient *http.Client
	baseURL    string
	hopperID   string
	token      string
	logger     *logrus.Entry
}

var _ interfaces.TradeFeed = (*Client)(nil)

func NewClient(cfg config.FeedConfig, timeout time.Duration, logger *logrus.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("feed base url is required")
	}
	if cfg.HopperID == "" {
		return nil, errors.New("hopper id is required")
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		hopperID:   cfg.HopperID,
		token:      cfg.AccessToken,
		logger:     logger.WithField("component", "trade_feed"),
	}, nil
}

// Fetch returns up to limit trades in feed order, newest first.
func (c *Client) Fetch(ctx context.Context, limit int) ([]trades.Trade, error) {
	endpoint := fmt.Sprintf("%s/hopper/%s/trades?%s", c.baseURL, url.PathEscape(c.hopperID), url.Values{
		"limit": []string{strconv.Itoa(limit)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &trades.FetchError{Kind: trades.FailureNetwork, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &trades.FetchError{Kind: trades.FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &trades.FetchError{Kind: trades.FailureNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &trades.FetchError{
			Kind:       trades.FailureHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(body), maxErrorBody)),
		}
	}

	batch, err := decodeTrades(body)
	if err != nil {
		return nil, &trades.FetchError{Kind: trades.FailureMalformedBody, Err: err}
	}
	c.logger.WithFields(logrus.Fields{
		"count":   len(batch),
		"limit":   limit,
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("fetched trades")
	return batch, nil
}

func decodeTrades(body []byte) ([]trades.Trade, error) {
	var payload tradesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode trades response: %w", err)
	}
	if payload.Data == nil || len(payload.Data.Trades) == 0 {
		return nil, nil
	}
	batch := make([]trades.Trade, 0, len(payload.Data.Trades))
	for i, item := range payload.Data.Trades {
		trade, err := item.toDomain()
		if err != nil {
			return nil, fmt.Errorf("trade #%d: %w", i, err)
		}
		batch = append(batch, trade)
	}
	return batch, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
