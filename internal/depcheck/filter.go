package depcheck

import (
	"strings"

	"github.com/ajranjith/vndk-depcheck/internal/device"
)

// Candidate is the parsed view of an ELF file the filter inspects.
type Candidate interface {
	MatchABI(abi string) bool
	IsExecutable() bool
	IsSharedObject() bool
	HasAndroidIdent() bool
	Interpreter() (string, error)
}

// Verdict is the outcome of the eligibility filter.
type Verdict int

const (
	Eligible Verdict = iota
	NotForAP
	NotBuiltForAndroid
)

func (v Verdict) String() string {
	switch v {
	case Eligible:
		return "eligible"
	case NotForAP:
		return "not for application processor"
	case NotBuiltForAndroid:
		return "not built for Android"
	default:
		return "unknown"
	}
}

// Filter decides whether a file on the partition is subject to the
// dependency policy.
type Filter struct {
	ABIs                []string
	DefaultInterpreters []string
	// Files without the Android build note are excluded only below these
	// prefixes.
	LegacyLibDirs []string
	LegacyBinDirs []string
	// Executable reports the execute permission of a local file.
	// Defaults to device.IsExecutable.
	Executable func(hostPath string) (bool, error)
}

// NewFilter returns the filter used for devices with the given ABIs.
func NewFilter(abis []string) *Filter {
	return &Filter{
		ABIs:                abis,
		DefaultInterpreters: []string{"/system/bin/linker", "/system/bin/linker64"},
		LegacyLibDirs:       []string{"/vendor/arib/lib/"},
		LegacyBinDirs:       []string{"/vendor/arib/bin/"},
	}
}

// Check applies the ABI rule, the foreign-interpreter rule and the build
// note rule in that order.
func (f *Filter) Check(c Candidate, e device.Entry) (Verdict, error) {
	ok, err := f.forApplicationProcessor(c, e)
	if err != nil {
		return NotForAP, err
	}
	if !ok {
		return NotForAP, nil
	}
	ok, err = f.builtForAndroid(c, e)
	if err != nil {
		return NotBuiltForAndroid, err
	}
	if !ok {
		return NotBuiltForAndroid, nil
	}
	return Eligible, nil
}

func (f *Filter) forApplicationProcessor(c Candidate, e device.Entry) (bool, error) {
	matched := false
	for _, abi := range f.ABIs {
		if c.MatchABI(abi) {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	// An executable with a foreign program interpreter that is not
	// executable on the file system is never run by the Android linker.
	if !c.IsExecutable() {
		return true, nil
	}
	foreign, err := f.foreignInterpreter(c)
	if err != nil || !foreign {
		return true, err
	}
	return f.executable(e.HostPath)
}

func (f *Filter) builtForAndroid(c Candidate, e device.Entry) (bool, error) {
	if c.HasAndroidIdent() {
		return true, nil
	}

	if hasAnyPrefix(e.TargetPath, f.LegacyLibDirs) &&
		strings.Contains(e.TargetPath, ".so") && c.IsSharedObject() {
		return false, nil
	}

	if hasAnyPrefix(e.TargetPath, f.LegacyBinDirs) {
		foreign, err := f.foreignInterpreter(c)
		if err != nil {
			return false, err
		}
		if foreign {
			if c.IsExecutable() {
				return false, nil
			}
			exec, err := f.executable(e.HostPath)
			if err != nil {
				return false, err
			}
			if exec {
				return false, nil
			}
		}
	}
	return true, nil
}

func (f *Filter) foreignInterpreter(c Candidate) (bool, error) {
	interp, err := c.Interpreter()
	if err != nil {
		return false, err
	}
	if interp == "" {
		return false, nil
	}
	for _, d := range f.DefaultInterpreters {
		if interp == d {
			return false, nil
		}
	}
	return true, nil
}

func (f *Filter) executable(hostPath string) (bool, error) {
	if f.Executable != nil {
		return f.Executable(hostPath)
	}
	return device.IsExecutable(hostPath)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
