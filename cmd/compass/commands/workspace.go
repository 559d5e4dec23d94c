package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dyluth/compass/internal/config"
	"github.com/dyluth/compass/internal/gateway"
	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/resolver"
	"github.com/dyluth/compass/internal/session"
	"github.com/dyluth/compass/internal/store"
	"github.com/dyluth/compass/pkg/canvas"
)

// workspace is everything one command invocation works with.
type workspace struct {
	cfg     *config.CompassConfig
	log     *slog.Logger
	store   *store.Store
	redis   *store.RedisKV // nil on the sqlite backend
	session *session.Session
}

// newGateway builds the AI gateway from config. It returns a nil Gateway when
// no API key is set, so non-AI commands work offline. Tests replace it.
var newGateway = func(cfg *config.CompassConfig, log *slog.Logger) (gateway.Gateway, error) {
	key := cfg.APIKey(os.Getenv)
	if key == "" {
		return nil, nil
	}
	g, err := gateway.NewGemini(gateway.GeminiConfig{
		APIKey:            key,
		BaseURL:           cfg.AI.BaseURL,
		Model:             cfg.AI.Model,
		DraftModel:        cfg.AI.DraftModel,
		Temperature:       cfg.AI.Temperature,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		Timeout:           cfg.AI.Timeout,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// loadConfig reads --config, falling back to defaults when the file is absent.
func loadConfig() (*config.CompassConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s, or regenerate it:\n  compass init --force", configPath)},
		)
	}
	return cfg, nil
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger(cfg *config.CompassConfig) *slog.Logger {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore connects to the configured backend.
func openStore(ctx context.Context, cfg *config.CompassConfig, log *slog.Logger) (*store.Store, *store.RedisKV, error) {
	var (
		kv    store.KV
		redis *store.RedisKV
	)

	switch cfg.Store.Backend {
	case config.BackendRedis:
		r, err := store.NewRedisKVFromURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, printer.Error("invalid redis_url", err.Error(), []string{"Check store.redis_url in compass.yml"})
		}
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, nil, printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis at %s", cfg.Store.RedisURL),
				map[string]string{"error": err.Error()},
				[]string{
					"Start a local store container:\n  compass store up",
					"Or switch to the local file store:\n  store.backend: sqlite",
				},
			)
		}
		kv, redis = r, r
	default:
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		s, err := store.NewSQLiteKV(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local store: %w", err)
		}
		kv = s
	}

	st, err := store.New(kv, cfg.Store.Namespace, store.WithLogger(log))
	if err != nil {
		kv.Close()
		return nil, nil, err
	}
	return st, redis, nil
}

// openWorkspace loads config, connects the store and builds a session.
func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)
	slog.SetDefault(log)

	st, redis, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	ai, err := newGateway(cfg, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to configure AI gateway: %w", err)
	}

	return &workspace{
		cfg:     cfg,
		log:     log,
		store:   st,
		redis:   redis,
		session: session.New(st, ai, session.Opts{Debounce: cfg.Autosave.Debounce, Logger: log}),
	}, nil
}

// Close flushes pending autosaves and closes the store.
func (ws *workspace) Close() {
	if err := ws.session.Close(); err != nil {
		ws.log.Warn("failed to flush pending changes", "error", err)
	}
	if err := ws.store.Close(); err != nil {
		ws.log.Debug("failed to close store", "error", err)
	}
}

// openProject makes ref (an id prefix) current in the session; an empty ref
// means the active project.
func (ws *workspace) openProject(ctx context.Context, ref string) (canvas.Project, error) {
	if ref == "" {
		p, err := ws.session.OpenActive(ctx)
		if errors.Is(err, session.ErrNoProject) {
			return canvas.Project{}, printer.Error(
				"no project",
				"There are no saved projects yet.",
				[]string{"Create one:\n  compass new \"My study\""},
			)
		}
		return p, err
	}

	id, err := ws.resolveProject(ctx, ref)
	if err != nil {
		return canvas.Project{}, err
	}
	return ws.session.Open(ctx, id)
}

// resolveProject expands a project id prefix.
func (ws *workspace) resolveProject(ctx context.Context, short string) (string, error) {
	id, err := resolver.ResolveProjectID(ws.store.List(ctx), short)
	if err != nil {
		return "", resolveError(err, "compass list")
	}
	return id, nil
}

// resolveItem expands an item id prefix against p.
func resolveItem(p canvas.Project, short string) (string, error) {
	id, err := resolver.ResolveItemID(p, short)
	if err != nil {
		return "", resolveError(err, "compass show")
	}
	return id, nil
}

func resolveError(err error, listCmd string) error {
	var notFound *resolver.NotFoundError
	var ambiguous *resolver.AmbiguousError
	switch {
	case errors.As(err, &notFound):
		return printer.Error(
			fmt.Sprintf("%s '%s' not found", notFound.Kind, notFound.ShortID),
			"",
			[]string{fmt.Sprintf("List ids:\n  %s", listCmd)},
		)
	case errors.As(err, &ambiguous):
		fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(ambiguous))
		return fmt.Errorf("ambiguous short ID")
	default:
		return err
	}
}

// aiError renders session errors from AI-backed commands.
func aiError(err error) error {
	switch {
	case errors.Is(err, session.ErrNoGateway):
		return printer.Error(
			"AI is not configured",
			"This command needs a Gemini API key.",
			[]string{"Set the key in the environment named by ai.api_key_env (default GEMINI_API_KEY):\n  export GEMINI_API_KEY=..."},
		)
	case gateway.IsMalformed(err):
		return printer.ErrorWithContext(
			"unexpected AI response",
			"The model replied in a shape compass could not use. Your project is unchanged.",
			map[string]string{"error": err.Error()},
			[]string{"Try again; replies vary between calls."},
		)
	default:
		return printer.ErrorWithContext(
			"AI request failed",
			"Your project is unchanged.",
			map[string]string{"error": err.Error()},
			nil,
		)
	}
}
