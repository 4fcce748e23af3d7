package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

const DefaultTimeout = 60 * time.Second

type APISettings struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

func (a *APISettings) Clone() *APISettings {
	return clone.Clone(a).(*APISettings)
}

type ClientSettings struct {
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	UserAgent  string        `yaml:"user_agent,omitempty"`
	HTTPClient *http.Client  `yaml:"-" json:"-"`
}

func NewClientSettings() *ClientSettings {
	return &ClientSettings{
		Timeout: DefaultTimeout,
	}
}

type clientSettingsYAML struct {
	Timeout   *int   `yaml:"timeout,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
}

// UnmarshalYAML reads the timeout as a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	var aux clientSettingsYAML
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		cs.Timeout = time.Duration(*aux.Timeout) * time.Second
	}
	cs.UserAgent = aux.UserAgent
	return nil
}

func (cs ClientSettings) MarshalYAML() (interface{}, error) {
	seconds := int(cs.Timeout / time.Second)
	return clientSettingsYAML{
		Timeout:   &seconds,
		UserAgent: cs.UserAgent,
	}, nil
}

// Clone copies the settings. The HTTP client is shared, not copied.
func (cs *ClientSettings) Clone() *ClientSettings {
	ret := *cs
	return &ret
}
