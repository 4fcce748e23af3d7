package types

import (
	"strings"

	"github.com/pkg/errors"
)

type ApiType string

const (
	ApiTypeGroq   ApiType = "groq"
	ApiTypeOpenAI ApiType = "openai"
	// ApiTypeEcho answers locally without network access
	ApiTypeEcho ApiType = "echo"
)

var ErrUnknownApiType = errors.New("unknown api type")

func ParseApiType(s string) (ApiType, error) {
	switch t := ApiType(strings.ToLower(strings.TrimSpace(s))); t {
	case ApiTypeGroq, ApiTypeOpenAI, ApiTypeEcho:
		return t, nil
	case "":
		return ApiTypeGroq, nil
	default:
		return "", errors.Wrapf(ErrUnknownApiType, "%q", s)
	}
}

// DefaultBaseURL returns the OpenAI-compatible endpoint of the provider.
func (t ApiType) DefaultBaseURL() string {
	switch t {
	case ApiTypeGroq:
		return "https://api.groq.com/openai/v1"
	case ApiTypeOpenAI:
		return "https://api.openai.com/v1"
	default:
		return ""
	}
}

// DefaultModel returns the model used when none is configured.
func (t ApiType) DefaultModel() string {
	switch t {
	case ApiTypeOpenAI:
		return "gpt-4o-mini"
	default:
		return "llama-3.3-70b-versatile"
	}
}

// APIKeyEnvVar is the provider's conventional environment variable for its API key.
func (t ApiType) APIKeyEnvVar() string {
	switch t {
	case ApiTypeGroq:
		return "GROQ_API_KEY"
	case ApiTypeOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

func (t ApiType) RequiresAPIKey() bool {
	return t != ApiTypeEcho
}
