package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestScoreSendsPairs(t *testing.T) {
	var got scoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.9, 0.1}})
	}))
	defer srv.Close()

	s, err := New(Config{Endpoint: srv.URL, Model: "test-model", APIKey: "sekrit"})
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "the query", []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Pairs, 2)
	assert.Equal(t, [2]string{"the query", "first"}, got.Pairs[0])
	assert.Equal(t, [2]string{"the query", "second"}, got.Pairs[1])
}

func TestScoreEmptyPassages(t *testing.T) {
	s, err := New(Config{Endpoint: "http://localhost:1"})
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestScoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"p"})
	assert.ErrorIs(t, err, domain.ErrRerankerUnavailable)
}

func TestScoreConnectionRefused(t *testing.T) {
	s, err := New(Config{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"p"})
	assert.ErrorIs(t, err, domain.ErrRerankerUnavailable)
}

func TestScoreAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Error: "unknown model"})
	}))
	defer srv.Close()

	s, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"p"})
	require.ErrorIs(t, err, domain.ErrRerankerUnavailable)
	assert.Contains(t, err.Error(), "unknown model")
}

func TestScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.5}})
	}))
	defer srv.Close()

	s, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrRerankerUnavailable)
}

func TestScoreContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = s.Score(ctx, "q", []string{"p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultsApplied(t *testing.T) {
	s, err := New(Config{Endpoint: "http://localhost:9"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultTimeout, s.client.Timeout)
}
