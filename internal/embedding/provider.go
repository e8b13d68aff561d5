// Package embedding provides the fingerprint->vector index and the
// HTTP-based embedding providers that fill it. Ground:
// internal/memory/embedding_lmstudio.go's LMStudioEmbedding (identical
// baseURL + "/embeddings" POST, embeddingRequest/embeddingResponse
// JSON shapes, http.Client with a timeout), generalized into a local
// and a remote variant sharing the same request/response wire shape.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Provider computes embeddings for text, whether backed by a local
// model or an external service; the index is oblivious to the source.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Available reports whether the provider is usable: a local model
	// is loaded, a remote key is configured, or the base URL is on
	// loopback.
	Available() bool
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// HTTPProvider implements Provider against an OpenAI-style /embeddings
// endpoint, either a local model server (LM Studio, Ollama) or a
// remote API reachable with a bearer key.
type HTTPProvider struct {
	baseURL    string
	model      string
	apiKey     string
	local      bool
	client     *http.Client
	dimensions int
}

// NewLocalProvider targets a local model server; Available() is always
// true for it, whatever host the base URL names.
func NewLocalProvider(baseURL, model string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		model:      model,
		local:      true,
		client:     &http.Client{Timeout: 30 * time.Second},
		dimensions: 1536,
	}
}

// NewRemoteProvider targets an external embedding API authenticated
// with apiKey; Available() is true whenever apiKey is non-empty.
func NewRemoteProvider(baseURL, model, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		dimensions: 1536,
	}
}

func (p *HTTPProvider) Available() bool {
	if p.local {
		return true
	}
	if p.apiKey != "" {
		return true
	}
	return isLoopback(p.baseURL)
}

func isLoopback(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := p.embedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedAll(ctx, texts)
}

// embedAll sends one request per text, matching the teacher's
// EmbedBatch loop (the embedding API this is grounded on takes a
// single "input" string per call).
func (p *HTTPProvider) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		req := embeddingRequest{Input: text, Model: p.model}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build embedding request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("failed to call embedding API: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("embedding API error: %s - %s", resp.Status, string(respBody))
		}

		var embResp embeddingResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&embResp)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode embedding response: %w", decodeErr)
		}
		if len(embResp.Data) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}

		embedding := embResp.Data[0].Embedding
		p.dimensions = len(embedding)
		results[i] = embedding
	}
	return results, nil
}

func (p *HTTPProvider) Dimensions() int {
	return p.dimensions
}
