package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quote-compare/internal/common"
	"github.com/joseph-ayodele/quote-compare/internal/llm"
)

type chatRequest struct {
	Model          string         `json:"model"`
	ResponseFormat map[string]any `json:"response_format"`
	Messages       []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			assert.NoError(t, json.Unmarshal(body, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractTextDocument(t *testing.T) {
	var seen chatRequest
	srv := newServer(t, http.StatusOK,
		`{"model":"gpt-4o-mini-2024","choices":[{"message":{"content":"{\"氏名\":\"山田太郎\"}"}}]}`, &seen)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)

	resp, err := c.Extract(context.Background(), llm.Request{
		FileName: "a.pdf",
		Fields:   []string{"氏名"},
		Text:     "山田太郎 / 架空保険",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"氏名":"山田太郎"}`, resp.Text)
	assert.Equal(t, "gpt-4o-mini-2024", resp.Model)
	assert.NotEmpty(t, resp.Envelope)

	assert.Equal(t, "json_object", seen.ResponseFormat["type"])
	require.Len(t, seen.Messages, 2)
	user := string(seen.Messages[1].Content)
	assert.Contains(t, user, "山田太郎 / 架空保険")
	assert.NotContains(t, user, "image_url")
}

func TestExtractImageDocument(t *testing.T) {
	var seen chatRequest
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{}"}}]}`, &seen)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"}, nil)

	_, err := c.Extract(context.Background(), llm.Request{
		FileName: "scan.pdf",
		Fields:   []string{"氏名"},
		Images: []llm.Image{
			{MIMEType: "image/jpeg", Data: []byte("p1")},
			{MIMEType: "image/jpeg", Data: []byte("p2")},
		},
	})
	require.NoError(t, err)

	user := string(seen.Messages[1].Content)
	assert.Equal(t, 2, strings.Count(user, "data:image/jpeg;base64,"))
}

func TestExtractHTTPErrorIsTagged(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, nil)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)

	_, err := c.Extract(context.Background(), llm.Request{FileName: "doc2.pdf", Fields: []string{"氏名"}, Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtractionRequest)

	var de *common.DocumentError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "doc2.pdf", de.FileName)
	assert.Equal(t, common.StageRequest, de.Stage)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestExtractEmptyChoicesLeavesTextEmpty(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[]}`, nil)
	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, nil)

	resp, err := c.Extract(context.Background(), llm.Request{FileName: "a.pdf", Fields: []string{"氏名"}, Text: "x"})
	require.NoError(t, err)
	assert.Empty(t, resp.Text)

	_, _, err = llm.ResponseText(resp)
	assert.ErrorIs(t, err, llm.ErrNoTextContent)
}
