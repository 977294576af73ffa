package depcheck

import (
	"strings"

	"github.com/ajranjith/vndk-depcheck/internal/golden"
)

// Scope names the namespace whose policy a violation breaks.
type Scope string

const (
	ScopeVendor    Scope = "vendor"
	ScopeVndkSpExt Scope = "vndk-sp-ext"
	ScopeSPHAL     Scope = "sp-hal"
)

// Violation lists the disallowed dependencies of one file.
type Violation struct {
	TargetPath string   `json:"targetPath"`
	Bitness    int      `json:"bitness"`
	Scope      Scope    `json:"scope"`
	Disallowed []string `json:"disallowed"`
}

func (v Violation) String() string {
	return v.TargetPath + ": " + strings.Join(v.Disallowed, ", ")
}

// AllowFunc reports whether r may depend on the library named dep.
type AllowFunc func(dep string, r *Record) bool

// Check returns, in input order, one violation per record that declares a
// dependency allowed rejects.
func Check(scope Scope, records []*Record, allowed AllowFunc) []Violation {
	var out []Violation
	for _, r := range records {
		var disallowed []string
		for _, dep := range r.Deps {
			if !allowed(dep, r) {
				disallowed = append(disallowed, dep)
			}
		}
		if len(disallowed) > 0 {
			out = append(out, Violation{
				TargetPath: r.TargetPath,
				Bitness:    r.Bitness,
				Scope:      scope,
				Disallowed: disallowed,
			})
		}
	}
	return out
}

// VendorPolicy allows LL-NDK, VNDK, VNDK-SP, libraries in the vendor link
// paths and, for files below an app directory, libraries in the same
// directory.
func VendorPolicy(g *golden.Lists, vendorLibs RecordSet, checked []*Record, appDirs []string) AllowFunc {
	vendorNames := vendorLibs.Names()
	appLibs := map[string]golden.NameSet{}
	for _, r := range checked {
		if !underAny(r.TargetDir, appDirs) {
			continue
		}
		if appLibs[r.TargetDir] == nil {
			appLibs[r.TargetDir] = golden.NameSet{}
		}
		appLibs[r.TargetDir][r.Name] = struct{}{}
	}
	return func(dep string, r *Record) bool {
		return g.LLNDK.Has(dep) ||
			g.VNDK.Has(dep) ||
			g.VNDKSP.Has(dep) ||
			vendorNames.Has(dep) ||
			appLibs[r.TargetDir].Has(dep)
	}
}

// VndkSpExtPolicy allows LL-NDK, VNDK-SP and vendor link path libraries.
// VNDK is rejected: an extension of a VNDK-SP library must not pull VNDK
// into the process, directly or through a vendor library.
func VndkSpExtPolicy(g *golden.Lists, vendorLibs RecordSet) AllowFunc {
	vendorNames := vendorLibs.Names()
	return func(dep string, _ *Record) bool {
		return g.LLNDK.Has(dep) || g.VNDKSP.Has(dep) || vendorNames.Has(dep)
	}
}

// SPHALPolicy allows LL-NDK, VNDK-SP and the members of the SP-HAL closure.
func SPHALPolicy(g *golden.Lists, spHalLibs RecordSet) AllowFunc {
	names := spHalLibs.Names()
	return func(dep string, _ *Record) bool {
		return g.LLNDK.Has(dep) || g.VNDKSP.Has(dep) || names.Has(dep)
	}
}

func underAny(dir string, roots []string) bool {
	for _, root := range roots {
		if strings.HasPrefix(dir, strings.TrimSuffix(root, "/")+"/") {
			return true
		}
	}
	return false
}
