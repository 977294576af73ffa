package depcheck

import (
	"sort"
	"strings"
)

// LibToken in a link path stands for lib or lib64.
const LibToken = "{LIB}"

// LibDir returns the library directory name for a word size.
func LibDir(bitness int) string {
	if bitness == 64 {
		return "lib64"
	}
	return "lib"
}

// FormatPaths expands LibToken in every link path.
func FormatPaths(paths []string, bitness int) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.ReplaceAll(p, LibToken, LibDir(bitness))
	}
	return out
}

// Namespace maps a library name to the record the linker would load for it.
type Namespace map[string]*Record

// Names returns the sorted library names.
func (ns Namespace) Names() []string {
	out := make([]string, 0, len(ns))
	for n := range ns {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Records returns the members ordered by name.
func (ns Namespace) Records() []*Record {
	out := make([]*Record, 0, len(ns))
	for _, n := range ns.Names() {
		out = append(out, ns[n])
	}
	return out
}

// ResolveSPHALNamespace collects the records of the given bitness that live
// in one of the SP-HAL link paths. When a name occurs in several
// directories the one listed first in linkPaths wins, as in the linker's
// search order.
func ResolveSPHALNamespace(records []*Record, bitness int, linkPaths []string) Namespace {
	rank := dirRank(FormatPaths(linkPaths, bitness))
	ns := Namespace{}
	for _, r := range records {
		if r.Bitness != bitness {
			continue
		}
		i, ok := rank[r.TargetDir]
		if !ok {
			continue
		}
		if cur, ok := ns[r.Name]; ok && rank[cur.TargetDir] <= i {
			continue
		}
		ns[r.Name] = r
	}
	return ns
}

// Shadowed returns the records in the SP-HAL link paths that lost their name
// to another member of the namespace which is in keep. The linker never
// loads such a copy into a process that uses the winning library.
func (ns Namespace) Shadowed(records []*Record, bitness int, linkPaths []string, keep RecordSet) RecordSet {
	out := RecordSet{}
	for _, r := range inDirs(records, bitness, FormatPaths(linkPaths, bitness)) {
		if w, ok := ns[r.Name]; ok && w != r && keep.Has(w) {
			out.Add(r)
		}
	}
	return out
}

// ResolveVendorNamespace collects the records of the given bitness that
// live in one of the vendor link paths. Only membership matters here.
func ResolveVendorNamespace(records []*Record, bitness int, linkPaths []string) RecordSet {
	return inDirs(records, bitness, FormatPaths(linkPaths, bitness))
}

func inDirs(records []*Record, bitness int, dirs []string) RecordSet {
	rank := dirRank(dirs)
	set := RecordSet{}
	for _, r := range records {
		if r.Bitness != bitness {
			continue
		}
		if _, ok := rank[r.TargetDir]; ok {
			set.Add(r)
		}
	}
	return set
}

func dirRank(dirs []string) map[string]int {
	rank := make(map[string]int, len(dirs))
	for i, d := range dirs {
		if _, ok := rank[d]; !ok {
			rank[d] = i
		}
	}
	return rank
}
