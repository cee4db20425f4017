package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand"

	"github.com/far-prep/backend/internal/config"
	"github.com/far-prep/backend/internal/corpus"
	"github.com/far-prep/backend/internal/database"
	"github.com/far-prep/backend/internal/explain"
	"github.com/far-prep/backend/internal/progress"
	"github.com/far-prep/backend/internal/questions"
)

// app is everything a command needs: the question service and the store
// behind it.
type app struct {
	cfg   *config.Config
	store progress.Store
	svc   *questions.Service
}

func openApp(cfg *config.Config) (*app, error) {
	c, err := loadCorpus(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.Storage, cfg.ProgressOptions())
	if err != nil {
		return nil, err
	}

	var src rand.Source
	if cfg.ShuffleSeed != 0 {
		src = rand.NewSource(cfg.ShuffleSeed)
	}
	weak := cfg.WeakAreas

	svc := questions.NewService(c, store, questions.ServiceOptions{
		Shuffler:   questions.NewShuffler(src),
		WeakAreas:  &weak,
		Explainer:  explain.New(cfg.Explain),
		CorpusPath: cfg.CorpusPath,
	})
	return &app{cfg: cfg, store: store, svc: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// loadCorpus reads the question bank. A missing file starts an empty corpus
// that an import can fill.
func loadCorpus(path string) (*corpus.Corpus, error) {
	c, res, err := corpus.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[corpus] %s not found, starting empty", path)
		return corpus.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	log.Printf("[corpus] loaded %d of %d records from %s", c.Len(), res.Total, path)
	if n := res.InvalidCount(); n > 0 {
		log.Printf("[corpus] skipped %d invalid records: %v", n, res.Invalid)
	}
	return c, nil
}

func openStore(sc config.StorageConfig, opts progress.Options) (progress.Store, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return progress.NewMemoryStore(opts), nil

	case config.DriverFile:
		s, err := progress.OpenFileStore(sc.Path, opts)
		if err != nil {
			return nil, err
		}
		log.Printf("[store] progress file %s", sc.Path)
		return s, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db.DB, database.DriverSQLite); err != nil {
			db.Close()
			return nil, err
		}
		log.Printf("[store] sqlite %s", sc.Path)
		return progress.NewSQLiteStore(db, opts), nil

	case config.DriverPostgres:
		db, err := database.Connect(sc.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db, database.DriverPostgres); err != nil {
			db.Close()
			return nil, err
		}
		log.Printf("[store] postgres %s:%s/%s", sc.Postgres.Host, sc.Postgres.Port, sc.Postgres.DBName)
		return progress.NewPostgresStore(db, opts), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}
