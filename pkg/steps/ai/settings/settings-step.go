package settings

import (
	"os"
	"time"

	"github.com/go-go-golems/forkchat/pkg/kvstore"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Configuration keys. They double as flag names and, upper-cased with dashes replaced
// by underscores and prefixed with FORKCHAT_, as environment variables.
const (
	KeyApiType           = "api-type"
	KeyAPIKey            = "api-key"
	KeyBaseURL           = "base-url"
	KeyModel             = "model"
	KeyTemperature       = "temperature"
	KeyMaxTokens         = "max-tokens"
	KeyRequestsPerMinute = "requests-per-minute"
	KeyTimeout           = "timeout"
	KeyStoreBackend      = "store-backend"
	KeyStorePath         = "store-path"
	KeyTitleLength       = "title-length"
	KeyMoveToFront       = "move-to-front"
	KeyWatchStore        = "watch-store"
)

const redacted = "***"

type StepSettings struct {
	ApiType types.ApiType   `yaml:"api_type"`
	API     *APISettings    `yaml:"api"`
	Chat    *ChatSettings   `yaml:"chat"`
	Client  *ClientSettings `yaml:"client"`
	Store   *StoreSettings  `yaml:"store"`
}

func NewStepSettings() *StepSettings {
	ret := &StepSettings{
		ApiType: types.ApiTypeGroq,
		API:     &APISettings{},
		Chat:    NewChatSettings(),
		Client:  NewClientSettings(),
		Store:   NewStoreSettings(),
	}
	ret.Chat.Model = ret.ApiType.DefaultModel()
	ret.API.BaseURL = ret.ApiType.DefaultBaseURL()
	return ret
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	d := NewStepSettings()
	v.SetDefault(KeyApiType, string(d.ApiType))
	v.SetDefault(KeyTemperature, d.Chat.Temperature)
	v.SetDefault(KeyMaxTokens, d.Chat.MaxResponseTokens)
	v.SetDefault(KeyRequestsPerMinute, 0)
	v.SetDefault(KeyTimeout, int(d.Client.Timeout/time.Second))
	v.SetDefault(KeyStoreBackend, d.Store.Backend)
	v.SetDefault(KeyStorePath, d.Store.Path)
	v.SetDefault(KeyTitleLength, d.Store.TitleLength)
	v.SetDefault(KeyMoveToFront, d.Store.MoveToFront)
	v.SetDefault(KeyWatchStore, d.Store.Watch)
}

// FromViper assembles settings from v. Provider-dependent values (model, base url, api
// key) fall back to the provider defaults, and the api key to the provider's own
// environment variable such as GROQ_API_KEY.
func FromViper(v *viper.Viper) (*StepSettings, error) {
	apiType, err := types.ParseApiType(v.GetString(KeyApiType))
	if err != nil {
		return nil, err
	}

	ret := NewStepSettings()
	ret.ApiType = apiType

	ret.API.APIKey = v.GetString(KeyAPIKey)
	if ret.API.APIKey == "" && apiType.APIKeyEnvVar() != "" {
		ret.API.APIKey = os.Getenv(apiType.APIKeyEnvVar())
	}
	ret.API.BaseURL = v.GetString(KeyBaseURL)
	if ret.API.BaseURL == "" {
		ret.API.BaseURL = apiType.DefaultBaseURL()
	}

	ret.Chat.Model = v.GetString(KeyModel)
	if ret.Chat.Model == "" {
		ret.Chat.Model = apiType.DefaultModel()
	}
	if v.IsSet(KeyTemperature) {
		ret.Chat.Temperature = v.GetFloat64(KeyTemperature)
	}
	if v.IsSet(KeyMaxTokens) {
		ret.Chat.MaxResponseTokens = v.GetInt(KeyMaxTokens)
	}
	ret.Chat.RequestsPerMinute = v.GetInt(KeyRequestsPerMinute)
	if v.IsSet(KeyTimeout) {
		ret.Client.Timeout = time.Duration(v.GetInt(KeyTimeout)) * time.Second
	}

	if v.IsSet(KeyStoreBackend) {
		ret.Store.Backend = v.GetString(KeyStoreBackend)
	}
	if p := v.GetString(KeyStorePath); p != "" {
		ret.Store.Path = p
	}
	if v.IsSet(KeyTitleLength) {
		ret.Store.TitleLength = v.GetInt(KeyTitleLength)
	}
	if v.IsSet(KeyMoveToFront) {
		ret.Store.MoveToFront = v.GetBool(KeyMoveToFront)
	}
	if v.IsSet(KeyWatchStore) {
		ret.Store.Watch = v.GetBool(KeyWatchStore)
	}

	return ret, nil
}

func (s *StepSettings) Validate() error {
	if s.ApiType.RequiresAPIKey() && s.API.APIKey == "" {
		return errors.Errorf("no API key for %s, set --%s or %s", s.ApiType, KeyAPIKey, s.ApiType.APIKeyEnvVar())
	}
	if s.ApiType.RequiresAPIKey() && s.API.BaseURL == "" {
		return errors.Errorf("no base URL for %s", s.ApiType)
	}
	if s.Chat.Temperature < 0 || s.Chat.Temperature > 2 {
		return errors.Errorf("temperature must be between 0 and 2, got %v", s.Chat.Temperature)
	}
	if s.Chat.MaxResponseTokens <= 0 {
		return errors.Errorf("max tokens must be positive, got %d", s.Chat.MaxResponseTokens)
	}
	if s.Chat.RequestsPerMinute < 0 {
		return errors.Errorf("requests per minute must not be negative, got %d", s.Chat.RequestsPerMinute)
	}
	if s.Store.TitleLength <= 0 {
		return errors.Errorf("title length must be positive, got %d", s.Store.TitleLength)
	}
	if _, err := kvstore.ParseBackend(s.Store.Backend); err != nil {
		return err
	}
	return nil
}

func (s *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		ApiType: s.ApiType,
		API:     s.API.Clone(),
		Chat:    s.Chat.Clone(),
		Client:  s.Client.Clone(),
		Store:   s.Store.Clone(),
	}
}

// Redacted returns a copy that is safe to print.
func (s *StepSettings) Redacted() *StepSettings {
	ret := s.Clone()
	if ret.API.APIKey != "" {
		ret.API.APIKey = redacted
	}
	return ret
}

func (s *StepSettings) ToYAML() ([]byte, error) {
	return yaml.Marshal(s.Redacted())
}
