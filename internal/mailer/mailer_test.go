package mailer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridSender_Send(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendGridEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("sg-key", "Maple PTA", "pta@maple.test").WithHost(srv.URL)
	err := s.Send(context.Background(), Message{
		To:      "families@maple.test",
		Subject: "Maple Weekly",
		HTML:    "<p>Hi</p>",
		Text:    "Hi",
	})
	require.NoError(t, err)

	from := payload["from"].(map[string]interface{})
	assert.Equal(t, "pta@maple.test", from["email"])
	content := payload["content"].([]interface{})
	assert.Len(t, content, 2)
}

func TestSendGridSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSendGridSender("bad", "PTA", "pta@maple.test").WithHost(srv.URL)
	err := s.Send(context.Background(), Message{To: "x@maple.test", Subject: "s", HTML: "<p>x</p>"})
	assert.Error(t, err)
}

func TestNew_ConsoleWithoutKey(t *testing.T) {
	s := New("", "PTA", "pta@maple.test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, ok := s.(*ConsoleSender)
	assert.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@b.test"}))
}
