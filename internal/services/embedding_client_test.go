package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/embed/text", r.URL.Path)

		var req EmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Text)

		json.NewEncoder(w).Encode(EmbedResponse{
			Embedding: []float32{0.1, 0.2, 0.3},
			Dimension: 3,
			Model:     "test-model",
		})
	}))
	defer srv.Close()

	client := NewEmbeddingClient(srv.URL)
	vector, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestEmbeddingClient_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed/batch", r.URL.Path)

		var req EmbedBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Texts, 2)

		json.NewEncoder(w).Encode(EmbedBatchResponse{
			Embeddings: [][]float32{{0.1}, {0.2}},
			Dimension:  1,
		})
	}))
	defer srv.Close()

	client := NewEmbeddingClient(srv.URL)
	vectors, err := client.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.2}, vectors[1])
}

func TestEmbeddingClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(EmbedResponse{Embedding: []float32{1.0}})
	}))
	defer srv.Close()

	client := NewEmbeddingClientWithOptions(srv.URL, 5*time.Second, 2)
	vector, err := client.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.0}, vector)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEmbeddingClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"text too long"}`))
	}))
	defer srv.Close()

	client := NewEmbeddingClientWithOptions(srv.URL, 5*time.Second, 3)
	_, err := client.Embed(context.Background(), "bad input")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx responses must not be retried")
}

func TestEmbeddingClient_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewEmbeddingClient(srv.URL)
	healthy, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, healthy)

	srv.Close()
	_, err = client.HealthCheck(context.Background())
	assert.Error(t, err)
}
