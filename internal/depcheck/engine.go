package depcheck

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ajranjith/vndk-depcheck/internal/golden"
)

// Layout lists the partition directories that define the namespaces.
// Paths may contain LibToken.
type Layout struct {
	// SPHALLinkPaths is ordered by linker search precedence.
	SPHALLinkPaths  []string
	VendorLinkPaths []string
	VndkSpExtDirs   []string
	VendorAppDirs   []string
}

// DefaultLayout returns the directory layout of an Android P vendor image.
func DefaultLayout() Layout {
	return Layout{
		SPHALLinkPaths: []string{
			"/odm/{LIB}/egl", "/odm/{LIB}/hw", "/odm/{LIB}",
			"/vendor/{LIB}/egl", "/vendor/{LIB}/hw", "/vendor/{LIB}",
		},
		VendorLinkPaths: []string{
			"/odm/{LIB}/hw", "/odm/{LIB}/egl", "/odm/{LIB}",
			"/vendor/{LIB}/hw", "/vendor/{LIB}/egl", "/vendor/{LIB}",
		},
		VndkSpExtDirs: []string{
			"/odm/{LIB}/vndk-sp", "/vendor/{LIB}/vndk-sp",
		},
		VendorAppDirs: []string{
			"/vendor/app", "/vendor/priv-app", "/odm/app", "/odm/priv-app",
		},
	}
}

// Bitnesses returns the word sizes to check: 32-bit always, 64-bit when
// the device runs 64-bit code.
func Bitnesses(is64Bit bool) []int {
	if is64Bit {
		return []int{32, 64}
	}
	return []int{32}
}

// Pass is the outcome of checking one word size.
type Pass struct {
	Bitness    int      `json:"bitness"`
	VendorLibs []string `json:"vendorLibs"`
	SPHALLibs  []string `json:"spHalLibs"`
	VndkSpExt  []string `json:"vndkSpExtLibs"`
	// Deferrable holds vendor and VNDK-SP extension violations; they count
	// only when VNDK run-time enforcement is mandatory.
	Deferrable []Violation `json:"deferrable,omitempty"`
	// Fatal holds SP-HAL violations, which always count.
	Fatal    []Violation `json:"fatal,omitempty"`
	Enforced bool        `json:"enforced"`
}

// Violations returns the violations that fail the run.
func (p *Pass) Violations() []Violation {
	var out []Violation
	if p.Enforced {
		out = append(out, p.Deferrable...)
	}
	return append(out, p.Fatal...)
}

// Waived returns the violations ignored because enforcement is off.
func (p *Pass) Waived() []Violation {
	if p.Enforced {
		return nil
	}
	return p.Deferrable
}

// ReadError records a file that could not be parsed.
type ReadError struct {
	TargetPath string `json:"targetPath"`
	Message    string `json:"message"`
}

// Result merges the passes of one run.
type Result struct {
	Passes     []*Pass     `json:"passes"`
	ReadErrors []ReadError `json:"readErrors,omitempty"`
	Enforced   bool        `json:"enforced"`
}

// Violations returns the failing violations of all passes, 32-bit first.
func (r *Result) Violations() []Violation {
	var out []Violation
	for _, p := range r.Passes {
		out = append(out, p.Violations()...)
	}
	return out
}

// Waived returns the downgraded violations of all passes.
func (r *Result) Waived() []Violation {
	var out []Violation
	for _, p := range r.Passes {
		out = append(out, p.Waived()...)
	}
	return out
}

// ErrorCount is the number of read errors plus failing violations.
func (r *Result) ErrorCount() int {
	return len(r.ReadErrors) + len(r.Violations())
}

// OK reports whether the run passes.
func (r *Result) OK() bool { return r.ErrorCount() == 0 }

// Engine checks a loaded store against one set of golden lists.
type Engine struct {
	Golden *golden.Lists
	Layout Layout
	Logger *slog.Logger
}

// Run checks every requested word size. enforced is queried exactly once.
// The passes share only read-only state and run concurrently.
func (e *Engine) Run(store *Store, bitnesses []int, enforced func() bool, readErrors []ReadError) *Result {
	res := &Result{
		Passes:     make([]*Pass, len(bitnesses)),
		ReadErrors: readErrors,
		Enforced:   enforced(),
	}
	var wg sync.WaitGroup
	for i, b := range bitnesses {
		wg.Add(1)
		go func(i, b int) {
			defer wg.Done()
			res.Passes[i] = e.CheckBitness(store, b, res.Enforced)
		}(i, b)
	}
	wg.Wait()
	return res
}

// CheckBitness resolves the namespaces for one word size and checks them.
func (e *Engine) CheckBitness(store *Store, bitness int, enforced bool) *Pass {
	log := e.logger().With("bitness", bitness)
	records := store.Bitness(bitness)

	vendorLibs := ResolveVendorNamespace(records, bitness, e.Layout.VendorLinkPaths)
	log.Info("odm and vendor libraries including SP-HAL", "libs", joinNames(vendorLibs))

	spHalNamespace := ResolveSPHALNamespace(records, bitness, e.Layout.SPHALLinkPaths)

	var spHalRoots []*Record
	for _, r := range spHalNamespace.Records() {
		if e.Golden.SPHAL.Match(r.TargetPath) {
			spHalRoots = append(spHalRoots, r)
		}
	}
	spHalLibs := TransitiveClosure(spHalRoots, spHalNamespace)
	log.Info("SP-HAL libraries", "libs", joinNames(spHalLibs))

	extRoots := inDirs(records, bitness, FormatPaths(e.Layout.VndkSpExtDirs, bitness)).Sorted()
	extLibs := TransitiveClosure(extRoots, spHalNamespace)
	log.Info("VNDK-SP extension libraries and dependencies", "libs", joinNames(extLibs))

	shadowed := spHalNamespace.Shadowed(records, bitness, e.Layout.SPHALLinkPaths, spHalLibs)
	if len(shadowed) > 0 {
		log.Info("copies shadowed by SP-HAL libraries", "libs", joinNames(shadowed))
	}

	var vendorObjs, extObjs, spHalObjs []*Record
	for _, r := range records {
		inSPHAL, inExt := spHalLibs.Has(r), extLibs.Has(r)
		if inSPHAL {
			spHalObjs = append(spHalObjs, r)
		}
		if !inSPHAL && !inExt && !shadowed.Has(r) {
			vendorObjs = append(vendorObjs, r)
		}
		// The two closures may overlap; their restrictions are the same,
		// so overlapping members are checked once under SP-HAL.
		if inExt && !inSPHAL {
			extObjs = append(extObjs, r)
		}
	}

	pass := &Pass{
		Bitness:    bitness,
		VendorLibs: vendorLibs.Paths(),
		SPHALLibs:  spHalLibs.Paths(),
		VndkSpExt:  extLibs.Paths(),
		Enforced:   enforced,
	}
	pass.Deferrable = append(pass.Deferrable,
		Check(ScopeVendor, vendorObjs, VendorPolicy(e.Golden, vendorLibs, vendorObjs, e.Layout.VendorAppDirs))...)
	pass.Deferrable = append(pass.Deferrable,
		Check(ScopeVndkSpExt, extObjs, VndkSpExtPolicy(e.Golden, vendorLibs))...)
	if !enforced && len(pass.Deferrable) > 0 {
		log.Warn("VNDK run-time enforcement is off, ignoring dependency errors", "count", len(pass.Deferrable))
		for _, v := range pass.Deferrable {
			log.Warn("ignored dependency error", "path", v.TargetPath, "disallowed", v.Disallowed)
		}
	}

	pass.Fatal = Check(ScopeSPHAL, spHalObjs, SPHALPolicy(e.Golden, spHalLibs))
	return pass
}

func (e *Engine) logger() *slog.Logger { return orDiscard(e.Logger) }

func orDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func joinNames(s RecordSet) string {
	return strings.Join(s.Names().Names(), ", ")
}
