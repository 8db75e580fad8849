package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradenotifier/internal/config"
	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const maxErrorBody = 512

// Sink posts messages to one Telegram chat through the Bot API.
type Sink struct {
	httpClient *http.Client
	endpoint   string
	chatID     string
	parseMode  string
	logger     *logrus.Entry
}

var _ interfaces.NotificationSink = (*Sink)(nil)

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewSink(cfg config.TelegramConfig, timeout time.Duration, logger *logrus.Logger) (*Sink, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("telegram chat id is required")
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		return nil, errors.New("telegram api url is required")
	}
	return &Sink{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   fmt.Sprintf("%s/bot%s/sendMessage", apiURL, cfg.BotToken),
		chatID:     cfg.ChatID,
		parseMode:  cfg.ParseMode,
		logger:     logger.WithField("component", "telegram_sink"),
	}, nil
}

// Deliver sends text as a single message. It does not retry.
func (s *Sink) Deliver(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", text)
	if s.parseMode != "" {
		form.Set("parse_mode", s.parseMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &trades.DeliveryError{Kind: trades.FailureNetwork, Err: s.redact(err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &trades.DeliveryError{Kind: trades.FailureNetwork, Err: s.redact(err)}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cause := errors.New(describe(body))
		if readErr != nil {
			cause = fmt.Errorf("read response: %w", readErr)
		}
		return &trades.DeliveryError{
			Kind:       trades.FailureHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        cause,
		}
	}

	s.logger.WithField("chars", len(text)).Debug("message delivered")
	return nil
}

// redact strips the bot token, which is part of the request path, from transport errors.
func (s *Sink) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s sendMessage: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func describe(body []byte) string {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Description != "" {
		return resp.Description
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "empty response"
}
