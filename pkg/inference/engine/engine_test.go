package engine

import (
	"context"
	"io"
	"testing"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s Stream) ([]string, error) {
	t.Helper()
	ret := []string{}
	for {
		chunk, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ret, nil
			}
			return ret, err
		}
		ret = append(ret, chunk)
	}
}

func TestEchoEngineStreamsLastUserMessage(t *testing.T) {
	e := NewEchoEngine()
	e.TimePerChunk = 0

	s, err := e.Stream(context.Background(), conversation.Messages{
		conversation.NewUserMessage("first"),
		conversation.NewAssistantMessage("reply"),
		conversation.NewUserMessage("héllo"),
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	chunks, err := drain(t, s)
	require.NoError(t, err)
	require.Equal(t, []string{"echo", ": hé", "llo"}, chunks)
}

func TestEchoEngineRejectsEmptyInput(t *testing.T) {
	_, err := NewEchoEngine().Stream(context.Background(), nil)
	require.Error(t, err)
}

func TestSliceStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSliceStream(ctx, []string{"a", "b"}, 0)

	chunk, err := s.Recv()
	require.NoError(t, err)
	require.Equal(t, "a", chunk)

	cancel()
	_, err = s.Recv()
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompletionErrorKinds(t *testing.T) {
	cause := errors.New("too many requests")
	err := errors.Wrap(NewCompletionError(ErrRateLimited, 429, cause), "streaming")

	require.ErrorIs(t, err, ErrRateLimited)
	require.NotErrorIs(t, err, ErrAuth)
	require.ErrorIs(t, err, cause)
	require.True(t, Retryable(err))
	require.Contains(t, err.Error(), "status 429")

	require.False(t, Retryable(NewCompletionError(ErrAuth, 401, cause)))
}

func TestCountTokens(t *testing.T) {
	n, err := CountTokens("gpt-4", "hello world")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// unknown models fall back to cl100k_base
	n, err = CountTokens("llama-3.3-70b-versatile", "hello world")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = CountMessageTokens("", conversation.Messages{
		conversation.NewUserMessage("hello world"),
		conversation.NewAssistantMessage("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
