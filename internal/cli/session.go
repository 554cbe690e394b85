package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jask/taskcards/internal/ado"
	"github.com/jask/taskcards/internal/config"
	"github.com/jask/taskcards/internal/database"
	"github.com/jask/taskcards/internal/dispatch"
	"github.com/jask/taskcards/internal/logging"
	"github.com/jask/taskcards/internal/secrets"
	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
)

// session is what one command invocation works with: the loaded config, a
// logger, and the backend opened on demand.
type session struct {
	cfg config.Config
	log *logging.Logger

	db      *sql.DB
	backend store.Backend
}

// openSession loads the config and builds the logger. toFile sends logs to
// the rotating log file instead of stderr.
func openSession(cmd *cobra.Command, opts *RootOptions, toFile bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	lo := logging.Options{Level: cfg.Log.Level}
	if opts.Verbose {
		lo.Level = "debug"
	}
	if toFile {
		lo.File = cfg.Log.File
	} else {
		lo.Console = cmd.ErrOrStderr()
	}
	log, err := logging.New(lo)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return &session{cfg: cfg, log: log}, nil
}

// openDB migrates and opens the sqlite database. It fails for other backends.
func (s *session) openDB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	if s.cfg.Store.Backend != config.BackendSQLite {
		return nil, fmt.Errorf("this command needs the sqlite backend (store.backend is %q)", s.cfg.Store.Backend)
	}
	path := s.cfg.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s.log.Debug().Str("path", path).Msg("database ready")
	s.db = db
	return db, nil
}

// openBackend returns the configured work item source.
func (s *session) openBackend() (store.Backend, error) {
	if s.backend != nil {
		return s.backend, nil
	}
	switch s.cfg.Store.Backend {
	case config.BackendADO:
		a := s.cfg.ADO
		token, err := secrets.Resolve(a.TokenEnv, a.OrganizationURL, a.Token)
		if errors.Is(err, secrets.ErrNoToken) {
			return nil, fmt.Errorf("no Azure DevOps token: set %s or run `taskcards auth set-token`", a.TokenEnv)
		}
		if err != nil {
			return nil, fmt.Errorf("ado token: %w", err)
		}
		client, err := ado.New(ado.Config{
			OrganizationURL:   a.OrganizationURL,
			Project:           a.Project,
			Token:             token,
			RetryMax:          a.RetryMax,
			RequestsPerSecond: a.RequestsPerSecond,
		}, ado.WithLogger(s.log.With().Str("component", "ado").Logger()))
		if err != nil {
			return nil, err
		}
		s.backend = client
	default:
		db, err := s.openDB()
		if err != nil {
			return nil, err
		}
		s.backend = database.NewStore(db)
	}
	return s.backend, nil
}

func (s *session) executor(st store.Store) *dispatch.QueryExecutor {
	opts := []dispatch.ExecutorOption{dispatch.WithTimeout(s.cfg.Fetch.Timeout)}
	if s.cfg.Fetch.LinkQuery {
		opts = append(opts, dispatch.WithFilter(wiql.IterationLinkFilter))
	}
	return dispatch.NewExecutor(st, opts...)
}

func (s *session) coalescer(ctx context.Context, exec dispatch.Executor) *dispatch.Coalescer {
	return dispatch.NewCoalescer(ctx, exec,
		dispatch.WithLogger(s.log.With().Str("component", "dispatch").Logger()),
		dispatch.WithDiscardSuperseded(s.cfg.Fetch.DiscardSuperseded),
	)
}

// newCoalescer opens the backend and builds the fetch pipeline over it.
func (s *session) newCoalescer(ctx context.Context) (*dispatch.Coalescer, store.Backend, error) {
	b, err := s.openBackend()
	if err != nil {
		return nil, nil, err
	}
	return s.coalescer(ctx, s.executor(b)), b, nil
}

func (s *session) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	errs = append(errs, s.log.Close())
	return errors.Join(errs...)
}
