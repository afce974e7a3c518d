package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "7031337:bot_tkn_e41ac"

func TestSend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, fmt.Sprintf("/bot%s/sendMessage", testToken), r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "6046574860", r.PostForm.Get("chat_id"))
		assert.Equal(t, "Helmet fall detected!", r.PostForm.Get("text"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42}}`)
	}))
	defer srv.Close()

	ch := New(testToken, 6046574860, time.Second, WithBaseURL(srv.URL))
	err := ch.Send(context.Background(), "Helmet fall detected!")
	assert.NoError(t, err)
}

func TestSendErrorRedactsToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ch := New(testToken, 6046574860, time.Second, WithBaseURL(srv.URL))
	err := ch.Send(context.Background(), "msg")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testToken)
	assert.Contains(t, err.Error(), "***")
}

func TestSendServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := New(testToken, 6046574860, time.Second, WithBaseURL(srv.URL))
	err := ch.Send(context.Background(), "msg")
	assert.Error(t, err)
}

func TestSendRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	ch := New(testToken, 6046574860, time.Second, WithBaseURL(srv.URL))
	err := ch.Send(context.Background(), "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
