package openai

import (
	"context"
	"io"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIEngine streams chat completions from any OpenAI-compatible API, Groq included.
type OpenAIEngine struct {
	settings *settings.StepSettings
	client   *go_openai.Client
	limiter  *rate.Limiter
}

// NewOpenAIEngine creates the engine and its client. When the settings carry a request
// budget, Stream waits for the limiter before each request.
func NewOpenAIEngine(s *settings.StepSettings) (*OpenAIEngine, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}
	client, err := MakeClient(s.API, s.Client)
	if err != nil {
		return nil, err
	}

	ret := &OpenAIEngine{
		settings: s.Clone(),
		client:   client,
	}
	if rpm := s.Chat.RequestsPerMinute; rpm > 0 {
		ret.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return ret, nil
}

func (e *OpenAIEngine) Stream(ctx context.Context, messages conversation.Messages) (engine.Stream, error) {
	req, err := MakeCompletionRequest(e.settings.Chat, messages)
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, engine.NewCompletionError(engine.ErrRateLimited, 0, err)
		}
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Float32("temperature", req.Temperature).
		Int("max_tokens", req.MaxTokens).
		Msg("OpenAI starting streaming request")

	stream, err := e.client.CreateChatCompletionStream(ctx, *req)
	if err != nil {
		log.Error().Err(err).Msg("OpenAI streaming request failed")
		return nil, classifyError(err)
	}

	return &completionStream{stream: stream}, nil
}

// completionStream skips chunks without text, such as the role-only first chunk and
// the usage chunk that closes some providers' streams.
type completionStream struct {
	stream *go_openai.ChatCompletionStream
	chunks int
}

func (s *completionStream) Recv() (string, error) {
	for {
		response, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", s.chunks).Msg("OpenAI stream completed")
			return "", io.EOF
		}
		if err != nil {
			log.Error().Err(err).Int("chunks_received", s.chunks).Msg("OpenAI stream receive failed")
			return "", classifyError(err)
		}
		s.chunks++

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		log.Trace().Int("chunk", s.chunks).Str("delta", delta).Msg("OpenAI received chunk")
		return delta, nil
	}
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

var _ engine.Engine = (*OpenAIEngine)(nil)
var _ engine.Stream = (*completionStream)(nil)
