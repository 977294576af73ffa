// Package golden loads the versioned reference library lists (LL-NDK, VNDK,
// VNDK-SP and same-process HAL patterns) the dependency policy is checked
// against.
package golden

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"
)

// ErrMissingVersion is returned when no reference data exists for the
// requested platform version.
var ErrMissingVersion = errors.New("golden: no reference data for version")

const (
	fileExt = ".yaml"
	xzExt   = ".xz"
)

// NameSet is a set of library file names.
type NameSet map[string]struct{}

// NewNameSet builds a set from names or device paths; paths are reduced to
// their final segment.
func NewNameSet(entries ...string) NameSet {
	s := make(NameSet, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		s[path.Base(e)] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted members.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lists is the reference data for one platform version.
type Lists struct {
	Version string
	LLNDK   NameSet
	VNDK    NameSet
	VNDKSP  NameSet
	SPHAL   *PatternSet
}

type listsFile struct {
	LLNDK  *[]string `yaml:"ll_ndk"`
	VNDK   *[]string `yaml:"vndk"`
	VNDKSP *[]string `yaml:"vndk_sp"`
	SPHAL  *[]string `yaml:"sp_hal"`
}

// Load reads <dataDir>/<ver>.yaml, or its xz-compressed form
// <ver>.yaml.xz when only that exists.
func Load(dataDir, ver string) (*Lists, error) {
	ver = strings.TrimSpace(ver)
	if ver == "" {
		return nil, fmt.Errorf("%w: device reports no VNDK version", ErrMissingVersion)
	}
	file := filepath.Join(dataDir, ver+fileExt)
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		file += xzExt
		data, err = readXZ(file)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			avail, _ := AvailableVersions(dataDir)
			return nil, fmt.Errorf("%w %q in %s (available: %s)", ErrMissingVersion, ver, dataDir, strings.Join(avail, ", "))
		}
		return nil, fmt.Errorf("failed to read golden data %s: %w", file, err)
	}
	lists, err := Parse(data, ver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return lists, nil
}

func readXZ(file string) ([]byte, error) {
	bin, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	r, err := xz.NewReader(bytes.NewReader(bin))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Parse decodes a YAML document holding the four lists. Every list key must
// be present; an explicitly empty list is accepted.
func Parse(data []byte, ver string) (*Lists, error) {
	var raw listsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse golden data: %w", err)
	}
	missing := []string{}
	for key, v := range map[string]*[]string{
		"ll_ndk": raw.LLNDK, "vndk": raw.VNDK, "vndk_sp": raw.VNDKSP, "sp_hal": raw.SPHAL,
	} {
		if v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w %q: missing lists %s", ErrMissingVersion, ver, strings.Join(missing, ", "))
	}

	patterns, err := CompilePatterns(*raw.SPHAL)
	if err != nil {
		return nil, err
	}
	return &Lists{
		Version: ver,
		LLNDK:   NewNameSet(*raw.LLNDK...),
		VNDK:    NewNameSet(*raw.VNDK...),
		VNDKSP:  NewNameSet(*raw.VNDKSP...),
		SPHAL:   patterns,
	}, nil
}

// AvailableVersions lists the versions present in dataDir. Numeric versions
// sort by value; codenames follow in lexical order.
func AvailableVersions(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	var numeric version.Collection
	var named []string
	seen := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), fileExt)
		if !ok {
			name, ok = strings.CutSuffix(e.Name(), fileExt+xzExt)
		}
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		if v, err := version.NewVersion(name); err == nil {
			numeric = append(numeric, v)
		} else {
			named = append(named, name)
		}
	}
	sort.Sort(numeric)
	sort.Strings(named)
	out := make([]string, 0, len(numeric)+len(named))
	for _, v := range numeric {
		out = append(out, v.Original())
	}
	return append(out, named...), nil
}

// PatternSet matches same-process HAL libraries by device path or name.
type PatternSet struct {
	raw []string
	res []*regexp.Regexp
}

// libPattern replaces ${LIB} so one pattern covers lib and lib64.
const libPattern = "lib(?:64)?"

// CompilePatterns compiles patterns anchored at the start of the subject.
func CompilePatterns(patterns []string) (*PatternSet, error) {
	ps := &PatternSet{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		expr := "^(?:" + strings.ReplaceAll(p, "${LIB}", libPattern) + ")"
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid SP-HAL pattern %q: %w", p, err)
		}
		ps.raw = append(ps.raw, p)
		ps.res = append(ps.res, re)
	}
	return ps, nil
}

// Match reports whether the device path, or its file name, matches any
// pattern.
func (p *PatternSet) Match(targetPath string) bool {
	if p == nil {
		return false
	}
	name := path.Base(targetPath)
	for _, re := range p.res {
		if re.MatchString(targetPath) || re.MatchString(name) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (p *PatternSet) Patterns() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.raw...)
}
