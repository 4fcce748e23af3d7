package factory

import (
	"strings"

	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/openai"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/types"
	"github.com/pkg/errors"
)

// EngineFactory creates completion engines from settings, so callers do not need to
// know the concrete provider implementations.
type EngineFactory interface {
	CreateEngine(settings *settings.StepSettings) (engine.Engine, error)
	SupportedProviders() []string
	DefaultProvider() string
}

// StandardEngineFactory creates OpenAI-compatible engines (Groq and OpenAI) and the
// offline echo engine.
type StandardEngineFactory struct{}

func NewStandardEngineFactory() *StandardEngineFactory {
	return &StandardEngineFactory{}
}

func (f *StandardEngineFactory) CreateEngine(settings *settings.StepSettings) (engine.Engine, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}

	provider := settings.ApiType
	if provider == "" {
		provider = types.ApiType(f.DefaultProvider())
	}

	if err := f.validateSettings(settings, provider); err != nil {
		return nil, errors.Wrapf(err, "invalid settings for provider %s", provider)
	}

	switch provider {
	case types.ApiTypeGroq, types.ApiTypeOpenAI:
		return openai.NewOpenAIEngine(settings)

	case types.ApiTypeEcho:
		return engine.NewEchoEngine(), nil

	default:
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s", provider, supported)
	}
}

func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(types.ApiTypeGroq),
		string(types.ApiTypeOpenAI),
		string(types.ApiTypeEcho),
	}
}

func (f *StandardEngineFactory) DefaultProvider() string {
	return string(types.ApiTypeGroq)
}

func (f *StandardEngineFactory) validateSettings(settings *settings.StepSettings, provider types.ApiType) error {
	if settings.Chat == nil {
		return errors.New("chat settings cannot be nil")
	}
	if settings.API == nil {
		return errors.New("API settings cannot be nil")
	}

	if provider.RequiresAPIKey() {
		if settings.API.APIKey == "" {
			return errors.Errorf("missing API key, set %s", provider.APIKeyEnvVar())
		}
		if settings.API.BaseURL == "" {
			return errors.Errorf("missing base URL for provider %s", provider)
		}
	}

	return nil
}

// NewEngineFromStepSettings creates an engine with the standard factory.
func NewEngineFromStepSettings(stepSettings *settings.StepSettings) (engine.Engine, error) {
	return NewStandardEngineFactory().CreateEngine(stepSettings)
}

var _ EngineFactory = (*StandardEngineFactory)(nil)
