package engine

import (
	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// GetCodec returns the tokenizer of model, falling back to cl100k_base for models the
// tokenizer library does not know (which includes every non-OpenAI model).
func GetCodec(model string) (tokenizer.Codec, error) {
	if model != "" {
		c, err := tokenizer.ForModel(tokenizer.Model(model))
		if err == nil {
			return c, nil
		}
		log.Trace().Str("model", model).Msg("unknown tokenizer model, using cl100k_base")
	}
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "could not load tokenizer")
	}
	return c, nil
}

// CountTokens estimates the number of tokens of text for model.
func CountTokens(model string, text string) (int, error) {
	codec, err := GetCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

// CountMessageTokens sums the content tokens of every message.
func CountMessageTokens(model string, messages conversation.Messages) (int, error) {
	codec, err := GetCodec(model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		ids, _, err := codec.Encode(m.Content)
		if err != nil {
			return 0, errors.Wrap(err, "could not encode message")
		}
		total += len(ids)
	}
	return total, nil
}
