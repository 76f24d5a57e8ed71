package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/codex-k8s/nightly/internal/config"
	"github.com/codex-k8s/nightly/internal/history"
	"github.com/codex-k8s/nightly/internal/modelz"
	"github.com/codex-k8s/nightly/internal/supabase"
)

// platformSession holds the authenticated platform collaborators of one command.
type platformSession struct {
	client      *modelz.Client
	session     supabase.Session
	apiKey      string
	deployments *modelz.Deployments
}

// connect signs in and resolves the API key of the runner account.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*platformSession, error) {
	auth := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, cfg.HTTPTimeout)
	sess, err := auth.SignIn(ctx, cfg.Supabase.User, cfg.Supabase.Password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	logger.Debug("signed in", "user", sess.UserID)

	client := modelz.NewClient(cfg.Modelz.BaseURL, cfg.HTTPTimeout, logger)
	key, err := client.FetchAPIKey(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &platformSession{
		client:      client,
		session:     sess,
		apiKey:      key,
		deployments: client.Deployments(sess.UserID, cfg.Modelz.ClusterID, key),
	}, nil
}

// openStore opens the configured history backend.
func openStore(cfg *config.Config, logger *slog.Logger) (history.Store, func() error, error) {
	switch cfg.HistoryBackend {
	case config.BackendSQLite:
		if err := ensureDir(cfg.HistoryPath); err != nil {
			return nil, nil, err
		}
		db, err := history.OpenSQLite(cfg.HistoryPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return &history.SQLiteStore{DB: db}, db.Close, nil
	default:
		return history.NewFileStore(cfg.HistoryPath), func() error { return nil }, nil
	}
}

// wantedTemplates converts the catalog into the platform filter input.
func wantedTemplates(cat *config.Catalog) []modelz.Wanted {
	out := make([]modelz.Wanted, 0, len(cat.Templates))
	for _, t := range cat.Templates {
		out = append(out, modelz.Wanted{Name: t.Name, DocURL: t.Docs})
	}
	return out
}

func ensureDir(path string) error {
	if strings.HasPrefix(path, ":memory:") || strings.HasPrefix(path, "file:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir %q: %w", dir, err)
		}
	}
	return nil
}
