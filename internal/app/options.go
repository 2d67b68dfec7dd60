package service

import (
	"github.com/okian/hiscore/internal/adapters/repository"
	"github.com/okian/hiscore/internal/domain/dedupe"
	"github.com/okian/hiscore/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGameVersion sets the version tag ledgers are stored under.
func WithGameVersion(version string) Option {
	return func(s *Service) {
		if version != "" {
			s.gameVersion = version
		}
	}
}

// WithMaxSongID sets the catalog bound used by the merge and pack paths.
func WithMaxSongID(maxSongID int) Option {
	return func(s *Service) {
		if maxSongID > 0 {
			s.maxSongID = maxSongID
		}
	}
}

// WithStore injects a ledger store. Without it Start builds one from the
// configured backend.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBackend selects the store Start builds when none was injected:
// "memory" or "file". dir is the root of the file backend.
func WithBackend(backend, dir string) Option {
	return func(s *Service) {
		if backend != "" {
			s.backend = backend
		}
		s.storeDir = dir
	}
}

// WithDeduper injects the write-session deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDedupeSize sets the size of the write-session cache built by Start.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithLockStripes sets how many per-player lock stripes guard merges.
func WithLockStripes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lockStripes = n
		}
	}
}

// WithMaxStagesPerWrite caps the stages accepted in one write.
func WithMaxStagesPerWrite(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxStages = n
		}
	}
}
