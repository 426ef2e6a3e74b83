// Package host assembles the bindhost runtime: a foreign heap with the zcncore
// bindings served over the bridge transport, plus the optional admin surface.
package host

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/danmuck/zcnbind/internal/admin"
	"github.com/danmuck/zcnbind/internal/config"
	"github.com/danmuck/zcnbind/internal/foreign"
	"github.com/danmuck/zcnbind/internal/foreign/zcncore"
	"github.com/danmuck/zcnbind/internal/observability"
	"github.com/danmuck/zcnbind/internal/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	cfg       config.HostConfig
	heap      *foreign.Heap
	directory *zcncore.Directory
	bridge    *transport.Server
	admin     *admin.Server
}

// NewService seeds the directory and binds the zcncore classes and functions.
func NewService(cfg config.HostConfig) (*Service, error) {
	cfg = cfg.WithDefaults()
	if err := config.ValidateHostConfig(cfg); err != nil {
		return nil, err
	}
	heap := foreign.NewHeap()
	dir := zcncore.NewDirectory()
	if err := cfg.SeedDirectory(dir); err != nil {
		return nil, err
	}
	if err := zcncore.Register(heap, dir); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:       cfg,
		heap:      heap,
		directory: dir,
		bridge: transport.NewServer(heap, cfg.WireConfig(),
			transport.WithCallRecorder(observability.BoundaryRecorder("foreign"))),
	}
	if cfg.AdminAddr != "" {
		s.admin = admin.New(cfg.Name, cfg.AdminAddr, heap, cfg.CorsOrigins)
	}
	return s, nil
}

func (s *Service) Heap() *foreign.Heap {
	return s.heap
}

func (s *Service) Directory() *zcncore.Directory {
	return s.directory
}

func (s *Service) Bridge() *transport.Server {
	return s.bridge
}

// Run serves until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the bridge listener and the admin server until ctx is done or one fails.
func (s *Service) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.bridge.ListenAndServe(ctx, s.cfg.Addr)
		if errors.Is(err, transport.ErrServerClosed) {
			return nil
		}
		return err
	})
	if s.admin != nil {
		s.admin.SetReady(true)
		g.Go(func() error {
			return s.admin.ListenAndServe(ctx)
		})
	}
	log.Info().
		Str("name", s.cfg.Name).
		Str("addr", s.cfg.Addr).
		Str("admin_addr", s.cfg.AdminAddr).
		Int("clients", len(s.directory.ClientIDs())).
		Msg("bindhost started")
	err := g.Wait()
	stats := s.heap.Stats()
	log.Info().Int64("live", stats.Live).Int64("allocated", stats.Allocated).Msg("bindhost stopped")
	return err
}
