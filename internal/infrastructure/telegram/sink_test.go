package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradenotifier/internal/config"
	trades "tradenotifier/internal/domain/entity/trades"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestSink(t *testing.T, parseMode string, handler http.HandlerFunc) *Sink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sink, err := NewSink(config.TelegramConfig{
		APIURL:    srv.URL,
		BotToken:  "123:ABC",
		ChatID:    "-1002",
		ParseMode: parseMode,
	}, 2*time.Second, quietLogger())
	require.NoError(t, err)
	return sink
}

func TestDeliverPostsForm(t *testing.T) {
	sink := newTestSink(t, "HTML", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bot123:ABC/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "-1002", r.PostForm.Get("chat_id"))
		assert.Equal(t, "hello\nworld", r.PostForm.Get("text"))
		assert.Equal(t, "HTML", r.PostForm.Get("parse_mode"))
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	})

	require.NoError(t, sink.Deliver(context.Background(), "hello\nworld"))
}

func TestDeliverOmitsEmptyParseMode(t *testing.T) {
	sink := newTestSink(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		_, present := r.PostForm["parse_mode"]
		assert.False(t, present)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	require.NoError(t, sink.Deliver(context.Background(), "plain"))
}

func TestDeliverHTTPStatusError(t *testing.T) {
	sink := newTestSink(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	})

	err := sink.Deliver(context.Background(), "x")
	var deliveryErr *trades.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, trades.FailureHTTPStatus, deliveryErr.Kind)
	assert.Equal(t, http.StatusBadRequest, deliveryErr.StatusCode)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestDeliverReportsUnreadableErrorBody(t *testing.T) {
	sink := newTestSink(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "short")
	})

	err := sink.Deliver(context.Background(), "x")
	var deliveryErr *trades.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, http.StatusBadGateway, deliveryErr.StatusCode)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotContains(t, err.Error(), "empty response")
}

func TestDeliverNetworkErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	sink, err := NewSink(config.TelegramConfig{APIURL: srv.URL, BotToken: "123:SECRET", ChatID: "1"}, time.Second, quietLogger())
	require.NoError(t, err)

	err = sink.Deliver(context.Background(), "x")
	var deliveryErr *trades.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, trades.FailureNetwork, deliveryErr.Kind)
	assert.NotContains(t, err.Error(), "SECRET")
}

func TestNewSinkValidates(t *testing.T) {
	_, err := NewSink(config.TelegramConfig{APIURL: "http://x", ChatID: "1"}, time.Second, quietLogger())
	assert.Error(t, err)
	_, err = NewSink(config.TelegramConfig{APIURL: "http://x", BotToken: "t"}, time.Second, quietLogger())
	assert.Error(t, err)
	_, err = NewSink(config.TelegramConfig{BotToken: "t", ChatID: "1"}, time.Second, quietLogger())
	assert.Error(t, err)
}
