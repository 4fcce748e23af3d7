package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/types"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func chunk(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "llama-3.3-70b-versatile",
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]interface{}{"content": content}},
		},
	})
	return string(b)
}

type recordedRequest struct {
	Path string
	Auth string
	Body go_openai.ChatCompletionRequest
}

func sseServer(t *testing.T, lines []string, rec *recordedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec != nil {
			rec.Path = r.URL.Path
			rec.Auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, l := range lines {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", l)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func errorServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error":{"message":"status %d","type":"test_error"}}`, status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSettings(baseURL string) *settings.StepSettings {
	s := settings.NewStepSettings()
	s.ApiType = types.ApiTypeGroq
	s.API.APIKey = "gsk-test"
	s.API.BaseURL = baseURL
	return s
}

func collect(t *testing.T, s engine.Stream) ([]string, error) {
	t.Helper()
	ret := []string{}
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, c)
	}
}

var testMessages = conversation.Messages{
	conversation.NewUserMessage("hi"),
	conversation.NewAssistantMessage("hello"),
	conversation.NewUserMessage("how are you"),
}

func TestOpenAIEngineStreamsFragments(t *testing.T) {
	rec := &recordedRequest{}
	srv := sseServer(t, []string{chunk(""), chunk("Hel"), chunk("lo"), "[DONE]"}, rec)

	e, err := NewOpenAIEngine(testSettings(srv.URL))
	require.NoError(t, err)

	s, err := e.Stream(context.Background(), testMessages)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	chunks, err := collect(t, s)
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo"}, chunks)

	require.Equal(t, "/chat/completions", rec.Path)
	require.Equal(t, "Bearer gsk-test", rec.Auth)
	require.Equal(t, "llama-3.3-70b-versatile", rec.Body.Model)
	require.True(t, rec.Body.Stream)
	require.Equal(t, 2048, rec.Body.MaxTokens)
	require.InDelta(t, 0.7, rec.Body.Temperature, 0.0001)
	require.Len(t, rec.Body.Messages, 3)
	require.Equal(t, go_openai.ChatMessageRoleAssistant, rec.Body.Messages[1].Role)
	require.Equal(t, "how are you", rec.Body.Messages[2].Content)
}

func TestOpenAIEngineMalformedChunk(t *testing.T) {
	srv := sseServer(t, []string{chunk("Hel"), "{not json", "[DONE]"}, nil)

	e, err := NewOpenAIEngine(testSettings(srv.URL))
	require.NoError(t, err)
	s, err := e.Stream(context.Background(), testMessages)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	chunks, err := collect(t, s)
	require.Equal(t, []string{"Hel"}, chunks)
	require.ErrorIs(t, err, engine.ErrMalformedResponse)
}

func TestOpenAIEngineClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusTooManyRequests, engine.ErrRateLimited},
		{http.StatusUnauthorized, engine.ErrAuth},
		{http.StatusInternalServerError, engine.ErrAPI},
	}
	for _, c := range cases {
		t.Run(http.StatusText(c.status), func(t *testing.T) {
			srv := errorServer(t, c.status)
			e, err := NewOpenAIEngine(testSettings(srv.URL))
			require.NoError(t, err)

			_, err = e.Stream(context.Background(), testMessages)
			require.ErrorIs(t, err, c.kind)

			var ce *engine.CompletionError
			require.True(t, errors.As(err, &ce))
			require.Equal(t, c.status, ce.StatusCode)
		})
	}
}

func TestOpenAIEngineNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e, err := NewOpenAIEngine(testSettings(url))
	require.NoError(t, err)
	_, err = e.Stream(context.Background(), testMessages)
	require.ErrorIs(t, err, engine.ErrNetwork)
}

func TestOpenAIEngineCancelledContext(t *testing.T) {
	srv := sseServer(t, []string{chunk("x"), "[DONE]"}, nil)
	e, err := NewOpenAIEngine(testSettings(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Stream(ctx, testMessages)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIEngineRateLimiter(t *testing.T) {
	srv := sseServer(t, []string{chunk("x"), "[DONE]"}, nil)
	s := testSettings(srv.URL)
	s.Chat.RequestsPerMinute = 1
	e, err := NewOpenAIEngine(s)
	require.NoError(t, err)

	st, err := e.Stream(context.Background(), testMessages)
	require.NoError(t, err)
	_, err = collect(t, st)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// the second request would have to wait a minute, so the limiter refuses it
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = e.Stream(ctx, testMessages)
	require.Error(t, err)
	require.True(t, errors.Is(err, engine.ErrRateLimited) || errors.Is(err, context.DeadlineExceeded))
}

func TestMakeClientRequiresKey(t *testing.T) {
	s := testSettings("http://localhost")
	s.API.APIKey = ""
	_, err := NewOpenAIEngine(s)
	require.Error(t, err)
}

func TestMakeCompletionRequestRejectsEmpty(t *testing.T) {
	_, err := MakeCompletionRequest(settings.NewChatSettings(), testMessages)
	require.Error(t, err)

	cs := settings.NewChatSettings()
	cs.Model = "m"
	_, err = MakeCompletionRequest(cs, nil)
	require.Error(t, err)
}
