package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

// IDOllama is the registry id of the local Ollama backend.
const IDOllama = "ollama"

const defaultOllamaBaseURL = "http://localhost:11434"

// Ollama adapts a local Ollama server's REST API to the Adapter contract.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

// NewOllama builds an adapter for the Ollama server at baseURL. Request
// deadlines come from the caller's context, so the client itself carries
// no timeout.
func NewOllama(baseURL, modelName string) *Ollama {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &Ollama{
		client:  &http.Client{},
		baseURL: baseURL,
		model:   strings.TrimSpace(modelName),
	}
}

func (o *Ollama) ID() string { return IDOllama }

func (o *Ollama) Kind() Kind { return KindLocal }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Generate sends a non-streaming chat request to Ollama.
func (o *Ollama) Generate(ctx context.Context, prompt Prompt, params Params) (string, error) {
	if o.model == "" {
		return "", NewError(IDOllama, KindInvalidResponse, errors.New("model is not configured"))
	}

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: buildOllamaMessages(prompt),
		Stream:   false,
	}
	options := map[string]any{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(options) > 0 {
		payload.Options = options
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", NewError(IDOllama, KindInvalidResponse, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", NewError(IDOllama, KindInvalidResponse, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", Classify(IDOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", NewError(IDOllama, KindRateLimited, fmt.Errorf("ollama status %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return "", NewError(IDOllama, KindInvalidResponse,
			fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))))
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", NewError(IDOllama, KindInvalidResponse, fmt.Errorf("decode response: %w", err))
	}
	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return "", NewError(IDOllama, KindInvalidResponse, errors.New("empty completion"))
	}
	return content, nil
}

// Probe checks the Ollama tags endpoint, the same liveness signal the
// Ollama CLI itself uses.
func (o *Ollama) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return Classify(IDOllama, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return NewError(IDOllama, KindUnreachable, fmt.Errorf("ollama status %d", resp.StatusCode))
	}
	return nil
}

func buildOllamaMessages(prompt Prompt) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: prompt.System})
	}
	for _, turn := range prompt.History {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, ollamaMessage{Role: "user", Content: turn.Content})
		case chat.RoleAgent:
			messages = append(messages, ollamaMessage{Role: "assistant", Content: turn.Content})
		}
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: prompt.UserMessage})
	return messages
}

var _ Adapter = (*Ollama)(nil)
