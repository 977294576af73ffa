package depcheck

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ajranjith/vndk-depcheck/internal/device"
	"github.com/ajranjith/vndk-depcheck/internal/elfinfo"
)

// ELF is an opened object file.
type ELF interface {
	Candidate
	Bitness() int
	Needed() ([]string, error)
	Close() error
}

// Loader parses mirrored partition files into a Store.
type Loader struct {
	Filter *Filter
	// Open defaults to elfinfo.Open. It returns elfinfo.ErrNotELF for
	// files that should be skipped silently.
	Open   func(hostPath string) (ELF, error)
	Logger *slog.Logger
}

// Load parses every entry. Files that fail to parse are returned as read
// errors and do not stop the sweep.
func (l *Loader) Load(entries []device.Entry) (*Store, []ReadError) {
	log := orDiscard(l.Logger)
	open := l.Open
	if open == nil {
		open = openELF
	}

	store := NewStore()
	var readErrors []ReadError
	for _, e := range entries {
		rec, err := l.loadOne(open, e, log)
		if err != nil {
			readErrors = append(readErrors, ReadError{TargetPath: e.TargetPath, Message: err.Error()})
			continue
		}
		if rec == nil {
			continue
		}
		log.Info("loaded", "path", rec.TargetPath, "deps", strings.Join(rec.Deps, ", "))
		store.Add(rec)
	}
	return store, readErrors
}

func (l *Loader) loadOne(open func(string) (ELF, error), e device.Entry, log *slog.Logger) (*Record, error) {
	f, err := open(e.HostPath)
	if err != nil {
		if errors.Is(err, elfinfo.ErrNotELF) {
			log.Debug("not an ELF file", "path", e.TargetPath)
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	verdict, err := l.Filter.Check(f, e)
	if err != nil {
		return nil, err
	}
	if verdict != Eligible {
		log.Info("skipped", "path", e.TargetPath, "reason", verdict.String())
		return nil, nil
	}
	deps, err := f.Needed()
	if err != nil {
		return nil, err
	}
	return NewRecord(e.TargetPath, f.Bitness(), deps), nil
}

func openELF(hostPath string) (ELF, error) {
	f, err := elfinfo.Open(hostPath)
	if err != nil {
		return nil, err
	}
	return f, nil
}
