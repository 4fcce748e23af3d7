package cmds

import (
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/spf13/pflag"
)

// AddSettingsFlags registers one persistent flag per configuration key. Defaults live in
// settings.SetDefaults so that config files and the environment can override them.
func AddSettingsFlags(fs *pflag.FlagSet) {
	fs.String(settings.KeyApiType, "", "Completion provider (groq, openai, echo)")
	fs.String(settings.KeyAPIKey, "", "API key (default: $GROQ_API_KEY or $OPENAI_API_KEY)")
	fs.String(settings.KeyBaseURL, "", "Base URL of the OpenAI compatible endpoint")
	fs.String(settings.KeyModel, "", "Model name")
	fs.Float64(settings.KeyTemperature, 0, "Sampling temperature")
	fs.Int(settings.KeyMaxTokens, 0, "Maximum number of tokens in a reply")
	fs.Int(settings.KeyRequestsPerMinute, 0, "Client side rate limit, 0 disables it")
	fs.Int(settings.KeyTimeout, 0, "Seconds to wait for the first response bytes")
	fs.String(settings.KeyStoreBackend, "", "Chat store backend (sqlite, bolt, memory)")
	fs.String(settings.KeyStorePath, "", "Chat store file")
	fs.Int(settings.KeyTitleLength, 0, "Maximum length of derived chat titles")
	fs.Bool(settings.KeyMoveToFront, false, "Move updated chats to the top of the history")
	fs.Bool(settings.KeyWatchStore, false, "Reload the history when another process changes the store")
}
