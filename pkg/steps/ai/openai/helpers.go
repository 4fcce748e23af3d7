package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// MakeClient builds a go-openai client for any OpenAI-compatible endpoint.
func MakeClient(apiSettings *settings.APISettings, clientSettings *settings.ClientSettings) (*go_openai.Client, error) {
	if apiSettings == nil {
		return nil, errors.New("no api settings")
	}
	if apiSettings.APIKey == "" {
		return nil, errors.New("no API key")
	}
	if apiSettings.BaseURL == "" {
		return nil, errors.New("no base URL")
	}

	config := go_openai.DefaultConfig(apiSettings.APIKey)
	config.BaseURL = strings.TrimRight(apiSettings.BaseURL, "/")
	if clientSettings != nil {
		if clientSettings.HTTPClient != nil {
			config.HTTPClient = clientSettings.HTTPClient
		} else {
			config.HTTPClient = &http.Client{
				Transport: makeTransport(clientSettings),
			}
		}
	}
	client := go_openai.NewClientWithConfig(config)
	return client, nil
}

type userAgentRoundTripper struct {
	userAgent string
	next      http.RoundTripper
}

func (u *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", u.userAgent)
	return u.next.RoundTrip(req)
}

// makeTransport bounds the wait for response headers, not the whole stream.
func makeTransport(clientSettings *settings.ClientSettings) http.RoundTripper {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = clientSettings.Timeout
	if clientSettings.UserAgent == "" {
		return t
	}
	return &userAgentRoundTripper{userAgent: clientSettings.UserAgent, next: t}
}

func messageToOpenAIMessage(m conversation.Message) go_openai.ChatCompletionMessage {
	role := go_openai.ChatMessageRoleUser
	if m.Role == conversation.RoleAssistant {
		role = go_openai.ChatMessageRoleAssistant
	}
	return go_openai.ChatCompletionMessage{
		Role:    role,
		Content: m.Content,
	}
}

// MakeCompletionRequest turns the message list into a streaming chat completion request.
func MakeCompletionRequest(chatSettings *settings.ChatSettings, messages conversation.Messages) (*go_openai.ChatCompletionRequest, error) {
	if chatSettings == nil {
		return nil, errors.New("no chat settings")
	}
	if chatSettings.Model == "" {
		return nil, errors.New("no model")
	}
	if len(messages) == 0 {
		return nil, errors.New("no messages")
	}

	msgs := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, messageToOpenAIMessage(m))
	}

	return &go_openai.ChatCompletionRequest{
		Model:       chatSettings.Model,
		Messages:    msgs,
		MaxTokens:   chatSettings.MaxResponseTokens,
		Temperature: float32(chatSettings.Temperature),
		Stream:      true,
	}, nil
}

// classifyError maps go-openai and transport errors onto the engine error kinds.
// Context cancellation is passed through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return engine.NewCompletionError(kindForStatus(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode, err)
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return engine.NewCompletionError(kindForStatus(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode, err)
	}

	if errors.Is(err, go_openai.ErrTooManyEmptyStreamMessages) {
		return engine.NewCompletionError(engine.ErrMalformedResponse, 0, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return engine.NewCompletionError(engine.ErrMalformedResponse, 0, err)
	}

	// anything else failed below the HTTP layer
	return engine.NewCompletionError(engine.ErrNetwork, 0, err)
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return engine.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return engine.ErrAuth
	default:
		return engine.ErrAPI
	}
}
