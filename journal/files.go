package journal

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/fxerr"
)

const dayLayout = "2006_01_02"

// Override is the operator's per-symbol switch in the active management
// file.
type Override struct {
	// CloseImmediately forces the symbol's signal to flat.
	CloseImmediately bool `json:"Close Immediately"`
	// CloseOnSignalChange stops new exposure; the position is closed the
	// next time the signal asks for a change.
	CloseOnSignalChange bool `json:"Close On Trade Signal Change"`
}

// Store owns the dated files in one directory.
type Store struct {
	dir string
	now func() time.Time
	log *zap.Logger
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption { return func(s *Store) { s.now = now } }

func WithLogger(l *zap.Logger) StoreOption { return func(s *Store) { s.log = l } }

func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{dir: dir, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("component", "journal"))
	return s
}

func (s *Store) day() string { return s.now().Format(dayLayout) }

func (s *Store) OverridesPath() string {
	return filepath.Join(s.dir, s.day()+"_FX_Active_Management.json")
}

func (s *Store) ReportPath() string {
	return filepath.Join(s.dir, s.day()+"_FX_Order_Information.json")
}

// ReadOverrides loads today's override file and rewrites it so every
// symbol has an entry. A missing or unreadable file counts as all false.
// The returned map is usable even when the rewrite fails.
func (s *Store) ReadOverrides(symbols []string) (map[string]Override, error) {
	path := s.OverridesPath()
	out := map[string]Override{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		s.log.Warn("override file unreadable, using defaults", zap.String("path", path), zap.Error(err))
	default:
		var read map[string]Override
		if err := json.Unmarshal(data, &read); err != nil {
			s.log.Warn("override file malformed, using defaults", zap.String("path", path), zap.Error(err))
		} else if read != nil {
			out = read
		}
	}

	for _, sym := range symbols {
		if _, ok := out[sym]; !ok {
			out[sym] = Override{}
		}
	}
	return out, s.writeJSON("journal.ReadOverrides", path, out)
}

// WriteReport replaces today's report file.
func (s *Store) WriteReport(r Report) error {
	return s.writeJSON("journal.WriteReport", s.ReportPath(), r)
}

func (s *Store) writeJSON(op, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fxerr.E(op, fxerr.Persistence, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fxerr.E(op, fxerr.Persistence, err)
	}
	return fxerr.E(op, fxerr.Persistence, os.WriteFile(path, data, 0o644))
}
