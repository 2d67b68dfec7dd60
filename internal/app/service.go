// Package service provides the profile service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	repository "github.com/okian/hiscore/internal/adapters/repository"
	"github.com/okian/hiscore/internal/domain/codec"
	"github.com/okian/hiscore/internal/domain/dedupe"
	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/types"
	"github.com/okian/hiscore/pkg/logger"
	"github.com/okian/hiscore/pkg/metrics"
)

const (
	defaultGameVersion = "v21"
	defaultMaxSongID   = 1350
	defaultDedupeSize  = 50000
	defaultLockStripes = 64
	defaultMaxStages   = 64
)

// Request and response shapes shared with the HTTP layer.
type (
	Profile      = types.Profile
	WriteRequest = types.WriteRequest
	WriteResult  = types.WriteResult
	ChartView    = types.ChartView
)

// Service implements the API dependencies for the profile system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	locks   *stripedLock
	layout  codec.Layout

	// Configuration
	gameVersion string
	maxSongID   int
	backend     string
	storeDir    string
	dedupeSize  int
	lockStripes int
	maxStages   int

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		gameVersion: defaultGameVersion,
		maxSongID:   defaultMaxSongID,
		backend:     "memory",
		dedupeSize:  defaultDedupeSize,
		lockStripes: defaultLockStripes,
		maxStages:   defaultMaxStages,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting profile service...")

	if s.store == nil {
		store, err := s.buildStore()
		if err != nil {
			return err
		}
		s.store = store
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.locks = newStripedLock(s.lockStripes)
	s.layout = codec.NewLayout(s.maxSongID)

	s.started = true
	s.logger.Info(ctx, "profile service started",
		logger.String("gameVersion", s.gameVersion),
		logger.Int("maxSongID", s.maxSongID),
		logger.String("backend", s.backend),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("lockStripes", s.lockStripes),
	)

	return nil
}

func (s *Service) buildStore() (repository.Store, error) {
	switch s.backend {
	case "memory":
		return repository.NewMemoryStore(s.gameVersion), nil
	case "file":
		if s.storeDir == "" {
			return nil, fmt.Errorf("service.start: %w: file backend needs a directory", ErrInvalidBackend)
		}
		fs, err := repository.NewFileStore(s.storeDir, s.gameVersion)
		if err != nil {
			return nil, fmt.Errorf("service.start: %w", err)
		}
		return fs, nil
	}
	return nil, fmt.Errorf("service.start: %w: %q", ErrInvalidBackend, s.backend)
}

// Stop shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping profile service...")

	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "profile service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// ReadProfile loads the player's ledger and packs it for the client.
func (s *Service) ReadProfile(ctx context.Context, refID string) (Profile, error) {
	const op = "service.read_profile"
	if !s.running() {
		return Profile{}, fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	if !repository.ValidRefID(refID) {
		return Profile{}, fmt.Errorf("%s: %w", op, repository.ErrInvalidRefID)
	}

	lg, err := s.store.Load(ctx, refID)
	if err != nil {
		metrics.RecordStoreError("load")
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	words := s.layout.MedalWords(lg)
	metrics.RecordPackLatency("medal", msSince(start))

	start = time.Now()
	hiscore := s.layout.PackScores(lg)
	metrics.RecordPackLatency("score", msSince(start))

	metrics.RecordProfileRead()
	metrics.RecordLedgerCharts(lg.Len())

	s.logger.Debug(ctx, "profile packed",
		logger.String("refID", refID),
		logger.Int("charts", lg.Len()),
		logger.String("medalSize", humanize.Bytes(uint64(s.layout.MedalSize()))),
		logger.String("hiscoreSize", humanize.Bytes(uint64(len(hiscore)))),
	)

	return Profile{
		RefID:         refID,
		GameVersion:   s.gameVersion,
		ClearMedal:    words,
		ClearMedalSub: make(types.U8Array, s.maxSongID),
		Hiscore:       hiscore,
		Charts:        lg.Len(),
	}, nil
}

// Write merges the reported stages into the player's ledger and saves it.
func (s *Service) Write(ctx context.Context, req WriteRequest) (WriteResult, error) {
	const op = "service.write"
	if !s.running() {
		return WriteResult{}, fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	if !repository.ValidRefID(req.RefID) {
		return WriteResult{}, fmt.Errorf("%s: %w", op, repository.ErrInvalidRefID)
	}
	if len(req.Stages) > s.maxStages {
		return WriteResult{}, fmt.Errorf("%s: %w: %d > %d", op, ErrTooManyStages, len(req.Stages), s.maxStages)
	}

	// The session check runs under the player's lock so a concurrent
	// duplicate waits for the first attempt to either save or roll back.
	unlock := s.locks.lock(req.RefID)
	defer unlock()

	var dedupeKey string
	if req.SessionID != "" {
		dedupeKey = dedupe.Key(req.RefID, req.SessionID)
		if s.deduper.SeenAndRecord(ctx, dedupeKey) {
			metrics.RecordDuplicateWrite()
			s.logger.Debug(ctx, "duplicate write session, skipping",
				logger.String("refID", req.RefID),
				logger.String("sessionID", req.SessionID),
			)
			return WriteResult{Duplicate: true}, nil
		}
	}

	res, err := s.merge(ctx, req)
	if err != nil {
		if dedupeKey != "" {
			s.deduper.Unrecord(ctx, dedupeKey)
		}
		return WriteResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// merge loads, applies and saves. The caller holds the player's lock.
func (s *Service) merge(ctx context.Context, req WriteRequest) (WriteResult, error) {
	lg, err := s.store.Load(ctx, req.RefID)
	if err != nil {
		metrics.RecordStoreError("load")
		return WriteResult{}, err
	}

	sum := lg.ApplyStages(s.layout.Bounds(), req.Stages)
	for _, out := range sum.Outcomes {
		switch {
		case !out.Accepted:
			s.logger.Debug(ctx, "stage skipped",
				logger.String("refID", req.RefID),
				logger.Int("song", out.Chart.Song),
				logger.Int("sheet", out.Chart.Slot),
			)
		case out.UnknownTier:
			s.logger.Warn(ctx, "unknown clear medal in stage",
				logger.String("refID", req.RefID),
				logger.String("chart", out.Chart.Key()),
				logger.Int("nibble", int(out.Nibble)),
			)
		}
	}

	if err := s.store.Save(ctx, req.RefID, lg); err != nil {
		metrics.RecordStoreError("save")
		return WriteResult{}, err
	}

	metrics.RecordProfileWrite()
	metrics.RecordPlaysMerged(sum.Merged)
	metrics.RecordPlaysSkipped("out_of_range", sum.Skipped)
	metrics.RecordUnknownTiers(sum.UnknownTiers)

	res := WriteResult{
		WriteID:      uuid.NewString(),
		Merged:       sum.Merged,
		Skipped:      sum.Skipped,
		UnknownTiers: sum.UnknownTiers,
	}
	s.logger.Debug(ctx, "write merged",
		logger.String("refID", req.RefID),
		logger.String("writeID", res.WriteID),
		logger.Int("merged", res.Merged),
		logger.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Chart returns the stored record of one chart alongside its packed form.
func (s *Service) Chart(ctx context.Context, refID string, c ledger.ChartID) (ChartView, error) {
	const op = "service.chart"
	if !s.running() {
		return ChartView{}, fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	if !repository.ValidRefID(refID) {
		return ChartView{}, fmt.Errorf("%s: %w", op, repository.ErrInvalidRefID)
	}

	lg, err := s.store.Load(ctx, refID)
	if err != nil {
		metrics.RecordStoreError("load")
		return ChartView{}, fmt.Errorf("%s: %w", op, err)
	}

	view := ChartView{Chart: c}
	view.Record, view.Present = lg.Get(c)

	medals := s.layout.PackMedals(lg)
	scores := s.layout.PackScores(lg)
	view.PackedScore = s.layout.DecodeScore(scores, c)
	view.PackedMedal = s.layout.DecodeMedal(medals, c)
	view.PackedTier = s.layout.DecodeTier(medals, c)
	view.Packed = c.Song >= 0 && c.Song < s.maxSongID && c.Slot >= 0 && c.Slot < ledger.SlotsPerSong
	return view, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"gameVersion": s.gameVersion,
		"maxSongID":   s.maxSongID,
		"backend":     s.backend,
		"dedupeSize":  s.dedupeSize,
		"lockStripes": s.lockStripes,
	}

	if s.started {
		players := s.store.Count(context.Background())
		stats["storedPlayers"] = players
		stats["storeVersion"] = s.store.Version()
		stats["seenSessions"] = s.deduper.Size()
		metrics.UpdateStoredPlayers(players)
	}

	return stats
}

// Size returns the current number of write sessions in the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
