package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/okian/hiscore/internal/domain/ledger"
	"github.com/okian/hiscore/internal/domain/tier"
	"github.com/okian/hiscore/pkg/metrics"
)

// Document layout, one file per player and game version:
//
//	{
//	  "collection": "scores",
//	  "version": "v21",
//	  "scores": {
//	    "5:2": {"score": 987, "cnt": 1, "clear_type": 1000}
//	  }
//	}
//
// Keys other than "scores" and "version" are preserved across saves.
const (
	docCollection = "scores"
	docExt        = ".json"
	defaultMode   = 0o644
)

type docRecord struct {
	Score     uint32 `json:"score"`
	Count     uint32 `json:"cnt"`
	ClearType int    `json:"clear_type,omitempty"`
}

// FileStore keeps each ledger as a JSON document under dir/version.
type FileStore struct {
	mu       sync.RWMutex
	dir      string
	version  string
	fileMode os.FileMode
	indent   bool
}

// NewFileStore creates the version directory under dir if needed.
func NewFileStore(dir, version string, opts ...FileOption) (*FileStore, error) {
	const op = "repository.file.new"
	if strings.TrimSpace(version) == "" || strings.ContainsAny(version, `/\`) {
		return nil, fmt.Errorf("%s: invalid game version %q", op, version)
	}
	s := &FileStore{
		dir:      filepath.Join(dir, version),
		version:  version,
		fileMode: defaultMode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *FileStore) path(refID string) string {
	return filepath.Join(s.dir, refID+docExt)
}

// Load implements Store. Records with malformed keys are dropped and
// unknown clear codes load as tier.None.
func (s *FileStore) Load(ctx context.Context, refID string) (*ledger.Ledger, error) {
	const op = "repository.file.load"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("file", "load", msSince(start)) }()

	if !ValidRefID(refID) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefID)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadLedger, err)
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.path(refID))
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrLoadLedger, err)
	}
	return decodeDocument(data)
}

func decodeDocument(data []byte) (*ledger.Ledger, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("repository.file.decode: %w: malformed document", ErrLoadLedger)
	}
	lg := ledger.New()
	gjson.GetBytes(data, "scores").ForEach(func(key, value gjson.Result) bool {
		c, err := ledger.ParseKey(key.String())
		if err != nil {
			return true
		}
		t, _ := tier.FromCode(int(value.Get("clear_type").Int()))
		lg.Put(c, ledger.Record{
			BestScore: uint32(value.Get("score").Uint()),
			PlayCount: uint32(value.Get("cnt").Uint()),
			ClearTier: t,
		})
		return true
	})
	return lg, nil
}

// Save implements Store. The document is written to a temporary file and
// renamed into place.
func (s *FileStore) Save(ctx context.Context, refID string, lg *ledger.Ledger) error {
	const op = "repository.file.save"
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("file", "save", msSince(start)) }()

	if !ValidRefID(refID) {
		return fmt.Errorf("%s: %w", op, ErrInvalidRefID)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(refID)
	prev, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}
	if len(prev) == 0 || !gjson.ValidBytes(prev) {
		prev = []byte(`{}`)
	}

	out, err := s.encodeDocument(prev, lg)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}

	tmp, err := os.CreateTemp(s.dir, refID+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}
	if err := os.Chmod(tmp.Name(), s.fileMode); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrSaveLedger, err)
	}

	metrics.UpdateStoredPlayers(s.countLocked())
	return nil
}

func (s *FileStore) encodeDocument(prev []byte, lg *ledger.Ledger) ([]byte, error) {
	scores := make(map[string]docRecord, lg.Len())
	lg.Range(func(c ledger.ChartID, r ledger.Record) bool {
		scores[c.Key()] = docRecord{Score: r.BestScore, Count: r.PlayCount, ClearType: r.ClearTier.Code()}
		return true
	})
	raw, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}

	out, err := sjson.SetBytes(prev, "collection", docCollection)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "version", s.version); err != nil {
		return nil, err
	}
	if out, err = sjson.SetRawBytes(out, "scores", raw); err != nil {
		return nil, err
	}

	if s.indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, out, "", "  "); err == nil {
			out = buf.Bytes()
		}
	}
	return out, nil
}

// Count implements Store.
func (s *FileStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked()
}

func (s *FileStore) countLocked() int {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+docExt))
	if err != nil {
		return 0
	}
	return len(matches)
}

// Version implements Store.
func (s *FileStore) Version() string { return s.version }

// Dir returns the directory holding this version's documents.
func (s *FileStore) Dir() string { return s.dir }
