// Package depcheck classifies the ELF objects of the vendor and odm
// partitions into linker namespaces and checks their DT_NEEDED entries
// against the VNDK policy of each namespace.
package depcheck

import (
	"path"
	"sort"

	"github.com/ajranjith/vndk-depcheck/internal/golden"
)

// Record holds the dependency facts of one ELF file on the device.
// Records are identified by TargetPath and never modified after loading.
type Record struct {
	TargetPath string
	Name       string
	TargetDir  string
	Bitness    int
	Deps       []string
}

// NewRecord derives Name and TargetDir from the device path.
func NewRecord(targetPath string, bitness int, deps []string) *Record {
	return &Record{
		TargetPath: targetPath,
		Name:       path.Base(targetPath),
		TargetDir:  path.Dir(targetPath),
		Bitness:    bitness,
		Deps:       deps,
	}
}

// Store owns the records of one run in load order.
type Store struct {
	records []*Record
	byPath  map[string]*Record
}

func NewStore() *Store {
	return &Store{byPath: map[string]*Record{}}
}

// Add inserts r unless a record with the same target path exists.
func (s *Store) Add(r *Record) bool {
	if _, ok := s.byPath[r.TargetPath]; ok {
		return false
	}
	s.byPath[r.TargetPath] = r
	s.records = append(s.records, r)
	return true
}

func (s *Store) Len() int { return len(s.records) }

// Lookup returns the record stored under targetPath.
func (s *Store) Lookup(targetPath string) (*Record, bool) {
	r, ok := s.byPath[targetPath]
	return r, ok
}

// Records returns all records in load order.
func (s *Store) Records() []*Record {
	return append([]*Record(nil), s.records...)
}

// Bitness returns the records built for the given word size, in load order.
func (s *Store) Bitness(bitness int) []*Record {
	var out []*Record
	for _, r := range s.records {
		if r.Bitness == bitness {
			out = append(out, r)
		}
	}
	return out
}

// RecordSet is a set of records keyed by target path.
type RecordSet map[string]*Record

// Add reports whether r was not yet a member.
func (s RecordSet) Add(r *Record) bool {
	if _, ok := s[r.TargetPath]; ok {
		return false
	}
	s[r.TargetPath] = r
	return true
}

func (s RecordSet) Has(r *Record) bool {
	_, ok := s[r.TargetPath]
	return ok
}

// Names returns the file names of the members.
func (s RecordSet) Names() golden.NameSet {
	names := make(golden.NameSet, len(s))
	for _, r := range s {
		names[r.Name] = struct{}{}
	}
	return names
}

// Sorted returns the members ordered by target path.
func (s RecordSet) Sorted() []*Record {
	out := make([]*Record, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetPath < out[j].TargetPath })
	return out
}

// Paths returns the sorted target paths of the members.
func (s RecordSet) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
