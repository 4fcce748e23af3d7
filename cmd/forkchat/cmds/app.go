package cmds

import (
	"context"

	"github.com/go-go-golems/forkchat/pkg/chatstore"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/inference/engine/factory"
	"github.com/go-go-golems/forkchat/pkg/kvstore"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// App bundles what every command needs: the effective settings and the opened chat store.
type App struct {
	Settings *settings.StepSettings
	Backend  kvstore.Backend
	KV       kvstore.Store
	Store    *chatstore.Store
}

func OpenApp() (*App, error) {
	s, err := settings.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return OpenAppWithSettings(s)
}

func OpenAppWithSettings(s *settings.StepSettings) (*App, error) {
	backend, err := kvstore.ParseBackend(s.Store.Backend)
	if err != nil {
		return nil, err
	}
	kv, err := kvstore.Open(backend, s.Store.Path)
	if err != nil {
		return nil, err
	}
	store, err := chatstore.Open(kv,
		chatstore.WithTitleLength(s.Store.TitleLength),
		chatstore.WithMoveToFrontOnUpdate(s.Store.MoveToFront),
	)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	log.Debug().
		Str("backend", string(backend)).
		Str("path", s.Store.Path).
		Int("conversations", store.Len()).
		Msg("opened chat store")

	return &App{
		Settings: s,
		Backend:  backend,
		KV:       kv,
		Store:    store,
	}, nil
}

func (a *App) NewEngine() (engine.Engine, error) {
	if err := a.Settings.Validate(); err != nil {
		return nil, err
	}
	return factory.NewEngineFromStepSettings(a.Settings)
}

// WatchStore reloads the chat store whenever another process writes the store file, and
// calls onReload afterwards. It blocks until ctx is done. Only the sqlite backend can be
// shared between processes; for the others it returns immediately.
func (a *App) WatchStore(ctx context.Context, onReload func()) error {
	if !a.Settings.Store.Watch || a.Backend != kvstore.BackendSQLite {
		return nil
	}
	w, err := kvstore.NewWatcher(a.Settings.Store.Path, kvstore.DefaultDebounce, func() {
		a.Store.Reload()
		if onReload != nil {
			onReload()
		}
	})
	if err != nil {
		return errors.Wrap(err, "could not watch chat store")
	}
	defer func() {
		_ = w.Close()
	}()
	return w.Run(ctx)
}

func (a *App) Close() error {
	return a.KV.Close()
}

// resolveID accepts a full conversation id or a unique prefix of one.
func (a *App) resolveID(id string) (string, error) {
	if id == "" {
		return "", errors.New("conversation id is empty")
	}
	if a.Store.Has(id) {
		return id, nil
	}
	match := ""
	for _, e := range a.Store.GetHistory() {
		if len(e.ID) >= len(id) && e.ID[:len(id)] == id {
			if match != "" && match != e.ID {
				return "", errors.Errorf("conversation id %q is ambiguous", id)
			}
			match = e.ID
		}
	}
	if match == "" {
		return "", errors.Errorf("no conversation %q", id)
	}
	return match, nil
}
