package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajranjith/vndk-depcheck/internal/config"
	"github.com/ajranjith/vndk-depcheck/internal/depcheck"
	"github.com/ajranjith/vndk-depcheck/internal/device"
	"github.com/ajranjith/vndk-depcheck/internal/golden"
	"github.com/ajranjith/vndk-depcheck/internal/support"
)

// partitionRoots are the device directories whose files are checked.
var partitionRoots = []string{"/odm", "/vendor"}

// checkReport is written to report.json.
type checkReport struct {
	GeneratedAtUtc string               `json:"generatedAtUtc"`
	Tool           string               `json:"tool"`
	Version        string               `json:"version"`
	MirrorRoot     string               `json:"mirrorRoot"`
	Device         deviceSummary        `json:"device"`
	Files          int                  `json:"files"`
	Objects        int                  `json:"objects"`
	Passes         []*depcheck.Pass     `json:"passes"`
	ReadErrors     []depcheck.ReadError `json:"readErrors"`
	Violations     []depcheck.Violation `json:"violations"`
	Waived         []depcheck.Violation `json:"waived"`
	ErrorCount     int                  `json:"errorCount"`
	Status         string               `json:"status"`
}

type deviceSummary struct {
	ABIs          []string `json:"abis"`
	Is64Bit       bool     `json:"is64Bit"`
	VndkVersion   string   `json:"vndkVersion"`
	FirstAPILevel int      `json:"firstApiLevel,omitempty"`
	VndkLite      bool     `json:"vndkLite"`
	Enforced      bool     `json:"enforced"`
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the mirrored vendor and odm partitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := runCheck(a.cfg, a.log)
			if err != nil {
				return err
			}
			if err := writeOutputs(a.cfg, rep); err != nil {
				return err
			}
			printHUD(cmd.OutOrStdout(), cmd.ErrOrStderr(), rep)
			if rep.ErrorCount > 0 {
				return errFailed
			}
			return nil
		},
	}
}

// runCheck loads the mirrored partitions and evaluates the policy. Missing
// reference data or device facts abort the run; unreadable files become
// read errors in the report.
func runCheck(cfg config.Config, log *slog.Logger) (*checkReport, error) {
	prof, enforced, err := resolveProfile(cfg)
	if err != nil {
		return nil, err
	}
	lists, err := golden.Load(cfg.Paths.DataDir, prof.VndkVersion)
	if err != nil {
		return nil, err
	}
	log.Info("loaded reference lists", "version", lists.Version,
		"llndk", len(lists.LLNDK), "vndk", len(lists.VNDK), "vndkSp", len(lists.VNDKSP))

	entries, err := walkPartitions(cfg, log)
	if err != nil {
		return nil, err
	}

	loader := &depcheck.Loader{
		Filter: &depcheck.Filter{
			ABIs:                prof.ABIs,
			DefaultInterpreters: cfg.LinkPaths.DefaultInterpreters,
			LegacyLibDirs:       cfg.LinkPaths.LegacyLibDirs,
			LegacyBinDirs:       cfg.LinkPaths.LegacyBinDirs,
		},
		Logger: log,
	}
	store, readErrors := loader.Load(entries)

	engine := &depcheck.Engine{
		Golden: lists,
		Layout: depcheck.Layout{
			SPHALLinkPaths:  cfg.LinkPaths.SPHAL,
			VendorLinkPaths: cfg.LinkPaths.Vendor,
			VndkSpExtDirs:   cfg.LinkPaths.VndkSpExt,
			VendorAppDirs:   cfg.LinkPaths.VendorApps,
		},
		Logger: log,
	}
	res := engine.Run(store, depcheck.Bitnesses(prof.Is64Bit), enforced, readErrors)

	rep := &checkReport{
		GeneratedAtUtc: time.Now().UTC().Format(time.RFC3339),
		Tool:           "vndkdep",
		Version:        Version,
		MirrorRoot:     cfg.Paths.MirrorRoot,
		Device: deviceSummary{
			ABIs:          prof.ABIs,
			Is64Bit:       prof.Is64Bit,
			VndkVersion:   lists.Version,
			FirstAPILevel: prof.FirstAPILevel,
			VndkLite:      prof.VndkLite,
			Enforced:      res.Enforced,
		},
		Files:      len(entries),
		Objects:    store.Len(),
		Passes:     res.Passes,
		ReadErrors: nonNil(res.ReadErrors),
		Violations: nonNil(res.Violations()),
		Waived:     nonNil(res.Waived()),
		ErrorCount: res.ErrorCount(),
		Status:     "PASS",
	}
	if !res.OK() {
		rep.Status = "FAIL"
	}
	return rep, nil
}

// resolveProfile merges the config overrides over the mirrored build.prop
// files. The returned func is the enforcement signal.
func resolveProfile(cfg config.Config) (device.Profile, func() bool, error) {
	hostProps := make([]string, 0, len(cfg.Device.PropFiles))
	for _, p := range cfg.Device.PropFiles {
		hostProps = append(hostProps, cfg.HostPath(p))
	}
	props, err := device.LoadProps(hostProps...)
	if err != nil {
		return device.Profile{}, nil, err
	}
	prof := device.ProfileFromProps(props)
	if len(cfg.Device.ABIs) > 0 {
		prof.ABIs = cfg.Device.ABIs
	}
	if cfg.Device.VndkVersion != "" {
		prof.VndkVersion = cfg.Device.VndkVersion
	}
	switch {
	case cfg.Device.Is64Bit != nil:
		prof.Is64Bit = *cfg.Device.Is64Bit
	case !prof.Is64Bit:
		prof.Is64Bit = has64BitABI(prof.ABIs)
	}
	if len(prof.ABIs) == 0 {
		return device.Profile{}, nil, errors.New("device reports no CPU ABI; set device.abis or mirror /vendor/build.prop")
	}

	enforced := prof.RuntimeEnforced
	if cfg.Device.Enforced != nil {
		forced := *cfg.Device.Enforced
		enforced = func() bool { return forced }
	}
	return prof, enforced, nil
}

func has64BitABI(abis []string) bool {
	for _, abi := range abis {
		switch abi {
		case "arm64-v8a", "x86_64", "mips64", "riscv64":
			return true
		}
	}
	return false
}

// walkPartitions lists the files of every mirrored partition root. A
// partition missing from the mirror is skipped.
func walkPartitions(cfg config.Config, log *slog.Logger) ([]device.Entry, error) {
	var out []device.Entry
	for _, root := range partitionRoots {
		hostRoot := cfg.HostPath(root)
		entries, err := device.Walk(hostRoot, root, func(p string, err error) {
			log.Warn("cannot read directory", "path", p, "error", err)
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Info("partition not mirrored", "partition", root)
				continue
			}
			return nil, fmt.Errorf("failed to walk %s: %w", hostRoot, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

// writeOutputs writes the enabled reports, the certificate and the audit
// line.
func writeOutputs(cfg config.Config, rep *checkReport) error {
	if cfg.Reports.JSON.IsEnabled() {
		if err := support.WriteJSONAtomic(cfg.Reports.JSON.Path, rep); err != nil {
			return fmt.Errorf("cannot write report.json: %w", err)
		}
	}
	if cfg.Reports.SARIF.IsEnabled() {
		if err := writeSARIF(cfg.Reports.SARIF.Path, rep); err != nil {
			return fmt.Errorf("cannot write SARIF: %w", err)
		}
	}
	if cfg.Reports.JUnit.IsEnabled() {
		if err := writeJUnit(cfg.Reports.JUnit.Path, rep); err != nil {
			return fmt.Errorf("cannot write JUnit: %w", err)
		}
	}
	hash, err := writeCertificate(cfg, certificatePath(cfg), rep)
	if err != nil {
		return fmt.Errorf("cannot write certificate: %w", err)
	}
	return support.AppendAudit(cfg.Paths.OutputDir, support.AuditEntry{
		Command:        "check",
		MirrorRoot:     cfg.Paths.MirrorRoot,
		VndkVersion:    rep.Device.VndkVersion,
		Enforced:       rep.Device.Enforced,
		Files:          rep.Files,
		ReadErrors:     len(rep.ReadErrors),
		Violations:     len(rep.Violations),
		Waived:         len(rep.Waived),
		CertificateSHA: hash,
		Result:         rep.Status,
	})
}

func printHUD(stdout, stderr io.Writer, rep *checkReport) {
	if len(rep.Waived) > 0 {
		fmt.Fprintf(stderr, "WARNING: VNDK run-time enforcement is off; %d dependency errors ignored:\n", len(rep.Waived))
		for _, v := range rep.Waived {
			fmt.Fprintf(stderr, "WARNING:   %s\n", v)
		}
	}
	if len(rep.ReadErrors) > 0 {
		fmt.Fprintf(stderr, "ERROR: %d read errors:\n", len(rep.ReadErrors))
		for _, e := range rep.ReadErrors {
			fmt.Fprintf(stderr, "ERROR:   %s: %s\n", e.TargetPath, e.Message)
		}
	}
	if len(rep.Violations) > 0 {
		fmt.Fprintf(stderr, "ERROR: %d disallowed dependencies:\n", len(rep.Violations))
		for _, v := range rep.Violations {
			fmt.Fprintf(stderr, "ERROR:   %s\n", v)
		}
	}
	fmt.Fprintf(stdout, "VNDK %s, %d files, %d ELF objects, enforced=%v\n",
		rep.Device.VndkVersion, rep.Files, rep.Objects, rep.Device.Enforced)
	fmt.Fprintf(stdout, "Dependency check: %s (total number of errors: %d)\n", rep.Status, rep.ErrorCount)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
