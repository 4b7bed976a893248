package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

// IDArk is the registry id of the remote Ark backend.
const IDArk = "ark"

// Ark adapts the Volcengine Ark chat model to the Adapter contract.
type Ark struct {
	chatModel model.ChatModel
	baseURL   string
	defaults  Params
	client    *http.Client
}

// NewArk wraps an already-constructed Ark chat model. baseURL is only used
// for reachability probes; defaults apply when the persona leaves a
// generation parameter unset.
func NewArk(chatModel model.ChatModel, baseURL string, defaults Params) *Ark {
	return &Ark{
		chatModel: chatModel,
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		defaults:  defaults,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (a *Ark) ID() string { return IDArk }

func (a *Ark) Kind() Kind { return KindRemote }

// Generate invokes the Ark chat model with the assembled prompt.
func (a *Ark) Generate(ctx context.Context, prompt Prompt, params Params) (string, error) {
	temperature := params.Temperature
	if temperature == nil {
		temperature = a.defaults.Temperature
	}
	maxTokens := params.MaxTokens
	if maxTokens == nil {
		maxTokens = a.defaults.MaxTokens
	}

	var opts []model.Option
	if temperature != nil {
		opts = append(opts, model.WithTemperature(float32(*temperature)))
	}
	if maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*maxTokens))
	}

	response, err := a.chatModel.Generate(ctx, buildSchemaMessages(prompt), opts...)
	if err != nil {
		return "", Classify(IDArk, err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", NewError(IDArk, KindInvalidResponse, errors.New("empty completion"))
	}
	return response.Content, nil
}

// Probe treats any HTTP response from the Ark endpoint as reachable.
func (a *Ark) Probe(ctx context.Context) error {
	if a.baseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Classify(IDArk, err)
	}
	resp.Body.Close()
	return nil
}

// buildSchemaMessages converts the prompt into eino schema messages:
// system prompt, then history oldest first, then the new user message.
func buildSchemaMessages(prompt Prompt) []*schema.Message {
	messages := make([]*schema.Message, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, schema.SystemMessage(prompt.System))
	}
	for _, turn := range prompt.History {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAgent:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(prompt.UserMessage))
	return messages
}

var _ Adapter = (*Ark)(nil)
