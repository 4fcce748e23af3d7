package engine

import (
	"context"
	"io"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/pkg/errors"
)

// EchoEngine answers with the last user message, streamed a few runes at a time. It
// needs no network and is used for offline runs and demos.
type EchoEngine struct {
	Prefix        string
	ChunkSize     int
	TimePerChunk  time.Duration
	EmptyResponse string
}

func NewEchoEngine() *EchoEngine {
	return &EchoEngine{
		Prefix:        "echo: ",
		ChunkSize:     4,
		TimePerChunk:  20 * time.Millisecond,
		EmptyResponse: "(nothing to echo)",
	}
}

func (e *EchoEngine) Stream(ctx context.Context, messages conversation.Messages) (Stream, error) {
	if len(messages) == 0 {
		return nil, errors.New("no input")
	}

	text := e.EmptyResponse
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == conversation.RoleUser {
			text = e.Prefix + messages[i].Content
			break
		}
	}

	size := e.ChunkSize
	if size <= 0 {
		size = 1
	}
	chunks := []string{}
	runes := []rune(text)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return NewSliceStream(ctx, chunks, e.TimePerChunk), nil
}

// SliceStream replays fixed fragments, optionally pausing before each one.
type SliceStream struct {
	ctx    context.Context
	chunks []string
	delay  time.Duration
	idx    int
	closed bool
}

func NewSliceStream(ctx context.Context, chunks []string, delay time.Duration) *SliceStream {
	return &SliceStream{ctx: ctx, chunks: chunks, delay: delay}
}

func (s *SliceStream) Recv() (string, error) {
	if s.closed {
		return "", io.ErrClosedPipe
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.idx >= len(s.chunks) {
		return "", io.EOF
	}
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return "", s.ctx.Err()
		case <-t.C:
		}
	}
	chunk := s.chunks[s.idx]
	s.idx++
	return chunk, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

var _ Engine = (*EchoEngine)(nil)
var _ Stream = (*SliceStream)(nil)
