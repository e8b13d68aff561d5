// Package extraction is the orchestrator that calls an external LLM to
// pull candidate memories out of a conversation, classifies each
// candidate as add/update/noop against what's already stored, and
// applies the classified results through the engine's normal mutation
// entry points. Ground: the HTTP request/response shape of
// internal/memory/embedding_lmstudio.go's LMStudioEmbedding, adapted
// from an embeddings endpoint to a chat-completion-style extraction
// endpoint, and the tagged-variant dispatch style the teacher uses for
// CommandMessage.Type switches in internal/aider/bridge.go.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one turn of the conversation handed to the extractor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Candidate is one fact the provider extracted from the conversation.
type Candidate struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// Provider calls an external LLM to extract candidate facts.
type Provider interface {
	Extract(ctx context.Context, messages []Message) ([]Candidate, error)
	Available() bool
}

// Decision is the tagged variant a classified candidate dispatches on:
// exactly one of Add, Update, or Noop describes what should happen.
type Decision struct {
	Kind       DecisionKind
	Candidate  Candidate
	ExistingID int64 // set for Update
}

type DecisionKind string

const (
	DecisionAdd    DecisionKind = "add"
	DecisionUpdate DecisionKind = "update"
	DecisionNoop   DecisionKind = "noop"
)

// ExistingMemory is the minimal view the classifier needs of a
// currently-valid memory to compare against a candidate.
type ExistingMemory struct {
	ID      int64
	Content string
}

// Classify compares each candidate against the currently valid
// memories and tags it Add, Update, or Noop: an exact (case-
// insensitive) content match is a Noop, a candidate already contained
// in an existing memory's content is also a Noop, a candidate whose
// content contains an existing memory's content is an Update against
// that memory, and everything else is an Add.
func Classify(candidates []Candidate, existing []ExistingMemory) []Decision {
	decisions := make([]Decision, 0, len(candidates))
	for _, c := range candidates {
		lowerCandidate := strings.ToLower(strings.TrimSpace(c.Content))
		if lowerCandidate == "" {
			continue
		}

		decision := Decision{Kind: DecisionAdd, Candidate: c}
		for _, e := range existing {
			lowerExisting := strings.ToLower(strings.TrimSpace(e.Content))
			if lowerExisting == lowerCandidate {
				decision = Decision{Kind: DecisionNoop, Candidate: c, ExistingID: e.ID}
				break
			}
			if strings.Contains(lowerExisting, lowerCandidate) {
				decision = Decision{Kind: DecisionNoop, Candidate: c, ExistingID: e.ID}
				break
			}
			if strings.Contains(lowerCandidate, lowerExisting) {
				decision = Decision{Kind: DecisionUpdate, Candidate: c, ExistingID: e.ID}
				break
			}
		}
		decisions = append(decisions, decision)
	}
	return decisions
}

type extractRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type extractResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractedPayload is the JSON shape the extraction prompt asks the
// model to reply with: a flat list of candidate facts.
type extractedPayload struct {
	Facts []Candidate `json:"facts"`
}

// HTTPProvider calls an OpenAI-style /chat/completions endpoint,
// instructing the model to reply with JSON matching extractedPayload.
type HTTPProvider struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, model, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *HTTPProvider) Available() bool {
	return p.baseURL != ""
}

func (p *HTTPProvider) Extract(ctx context.Context, messages []Message) ([]Candidate, error) {
	if !p.Available() {
		return nil, fmt.Errorf("extraction provider not configured")
	}

	prompt := Message{
		Role: "system",
		Content: "Extract durable facts worth remembering from this conversation. " +
			`Reply with JSON only: {"facts":[{"content":"...","tags":["..."]}]}`,
	}
	req := extractRequest{
		Model:    p.model,
		Messages: append([]Message{prompt}, messages...),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call extraction API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extraction API error: %s - %s", resp.Status, string(respBody))
	}

	var extResp extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extResp); err != nil {
		return nil, fmt.Errorf("failed to decode extraction response: %w", err)
	}
	if len(extResp.Choices) == 0 {
		return nil, fmt.Errorf("no extraction choices returned")
	}

	var payload extractedPayload
	if err := json.Unmarshal([]byte(extResp.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extracted facts: %w", err)
	}
	return payload.Facts, nil
}
