package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/yungbote/graphrag-core/internal/config"
	"github.com/yungbote/graphrag-core/internal/data/candidates"
	"github.com/yungbote/graphrag-core/internal/data/db"
	datagraph "github.com/yungbote/graphrag-core/internal/data/graph"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/platform/neo4jdb"
	"github.com/yungbote/graphrag-core/internal/rag/graph"
	"github.com/yungbote/graphrag-core/internal/rag/pipeline"
)

// candidateStore is where the default candidate pools and, when available, the graph live.
type candidateStore struct {
	source pipeline.CandidateSource
	// exec is nil when the backend has no graph; graph retrieval is then skipped.
	exec  graph.Executor
	db    *gorm.DB
	neo4j *neo4jdb.Client
	// watcher is set when the static snapshot is hot-reloaded.
	watcher *candidates.Watcher
}

// watch starts the snapshot watcher, if any, for the lifetime of ctx.
func (s candidateStore) watch(ctx context.Context) {
	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}
}

func (s candidateStore) close(ctx context.Context) error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
	}
	if s.neo4j != nil {
		errs = append(errs, s.neo4j.Close(ctx))
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func wireCandidates(ctx context.Context, log *logger.Logger, cfg *config.Config) (candidateStore, error) {
	var out candidateStore
	switch cfg.Candidates.Source {
	case "neo4j":
		client, err := neo4jdb.NewFromEnv(log)
		if err != nil {
			return out, fmt.Errorf("init neo4j: %w", err)
		}
		if client == nil {
			return out, errors.New("candidate source neo4j requires NEO4J_URI")
		}
		out.neo4j = client
		out.source = datagraph.NewNeo4jCandidates(client, 0, log)
		out.exec = datagraph.NewNeo4jExecutor(client, log)

	case db.DriverPostgres, db.DriverSQLite:
		gdb, err := db.Open(db.ConfigFromEnv(cfg.Candidates.Source, cfg.Candidates.Path), log)
		if err != nil {
			return out, fmt.Errorf("init %s: %w", cfg.Candidates.Source, err)
		}
		out.db = gdb
		store := candidates.NewSQL(gdb, log)
		if err := store.AutoMigrate(ctx); err != nil {
			return out, fmt.Errorf("%s automigrate: %w", cfg.Candidates.Source, err)
		}
		out.source = store

	default:
		static, err := candidates.LoadFile(cfg.Candidates.Path)
		if err != nil {
			return out, fmt.Errorf("load candidates: %w", err)
		}
		out.source = static
		live := &liveGraph{}
		live.cur.Store(memoryGraph(log, static))
		out.exec = live
		if cfg.Candidates.Watch {
			w, err := candidates.NewWatcher(log, cfg.Candidates.Path, static, func(candidates.Snapshot) {
				live.cur.Store(memoryGraph(log, static))
			})
			if err != nil {
				return out, fmt.Errorf("watch candidates: %w", err)
			}
			out.watcher = w
		}
	}
	log.Info("candidate source ready", "source", cfg.Candidates.Source, "graph", out.exec != nil)
	return out, nil
}

// liveGraph serves whichever in-memory graph the last snapshot load produced.
type liveGraph struct {
	cur atomic.Pointer[graph.MemoryGraph]
}

func (g *liveGraph) Run(ctx context.Context, q graph.Query) ([]graph.Row, error) {
	return g.cur.Load().Run(ctx, q)
}

// memoryGraph loads a snapshot's entities and relations. Relations with unknown endpoints
// are skipped.
func memoryGraph(log *logger.Logger, s *candidates.Static) *graph.MemoryGraph {
	g := graph.NewMemoryGraph()
	ents, _ := s.Entities(context.Background())
	for _, e := range ents {
		if err := g.AddEntity(e); err != nil {
			log.Warn("snapshot entity skipped", "name", e.Name, "error", err)
		}
	}
	for _, r := range s.Relations() {
		if err := g.AddRelation(r); err != nil {
			log.Warn("snapshot relation skipped", "source", r.Source, "target", r.Target, "error", err)
		}
	}
	return g
}

func (s candidateStore) probes() map[string]func(context.Context) error {
	out := map[string]func(context.Context) error{}
	if s.neo4j != nil {
		client := s.neo4j
		out["neo4j"] = func(ctx context.Context) error {
			_, err := client.ReadRows(ctx, "RETURN 1 AS ok", nil)
			return err
		}
	}
	if s.db != nil {
		gdb := s.db
		out["database"] = func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return out
}
