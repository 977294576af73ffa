package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajranjith/vndk-depcheck/internal/config"
	"github.com/ajranjith/vndk-depcheck/internal/golden"
	"github.com/ajranjith/vndk-depcheck/internal/support"
)

type doctorReport struct {
	GeneratedAtUtc string        `json:"generatedAtUtc"`
	ConfigPath     string        `json:"configPath,omitempty"`
	Mirror         doctorMirror  `json:"mirror"`
	Device         doctorDevice  `json:"device"`
	Golden         doctorGolden  `json:"golden"`
	Signing        doctorSigning `json:"signing"`
	Status         string        `json:"status"`
	Reasons        []string      `json:"reasons,omitempty"`
}

type doctorMirror struct {
	Root       string          `json:"root"`
	Partitions map[string]bool `json:"partitions"`
}

type doctorDevice struct {
	ABIs        []string `json:"abis"`
	Is64Bit     bool     `json:"is64Bit"`
	VndkVersion string   `json:"vndkVersion"`
	Enforced    bool     `json:"enforced"`
	Error       string   `json:"error,omitempty"`
}

type doctorGolden struct {
	DataDir   string   `json:"dataDir"`
	Available []string `json:"available"`
	Valid     bool     `json:"valid"`
	Error     string   `json:"error,omitempty"`
}

type doctorSigning struct {
	KeyPath    string `json:"keyPath"`
	Configured bool   `json:"configured"`
}

func buildDoctorReport(cfg config.Config, cfgPath string) doctorReport {
	rep := doctorReport{
		GeneratedAtUtc: time.Now().UTC().Format(time.RFC3339),
		ConfigPath:     cfgPath,
		Mirror:         doctorMirror{Root: cfg.Paths.MirrorRoot, Partitions: map[string]bool{}},
		Golden:         doctorGolden{DataDir: cfg.Paths.DataDir},
		Signing:        doctorSigning{KeyPath: cfg.Paths.SigningKey},
		Status:         "OK",
	}
	degrade := func(reason string) {
		rep.Status = "DEGRADED"
		rep.Reasons = append(rep.Reasons, reason)
	}

	for _, root := range partitionRoots {
		info, err := os.Stat(cfg.HostPath(root))
		rep.Mirror.Partitions[root] = err == nil && info.IsDir()
	}
	if !rep.Mirror.Partitions["/vendor"] {
		degrade("vendor partition not mirrored")
	}

	prof, enforced, err := resolveProfile(cfg)
	if err != nil {
		rep.Device.Error = err.Error()
		degrade("device profile incomplete")
	} else {
		rep.Device = doctorDevice{
			ABIs:        prof.ABIs,
			Is64Bit:     prof.Is64Bit,
			VndkVersion: prof.VndkVersion,
			Enforced:    enforced(),
		}
	}

	avail, err := golden.AvailableVersions(cfg.Paths.DataDir)
	if err != nil {
		rep.Golden.Error = err.Error()
		degrade("golden data directory unreadable")
	}
	rep.Golden.Available = nonNil(avail)
	if rep.Device.Error == "" {
		if _, err := golden.Load(cfg.Paths.DataDir, rep.Device.VndkVersion); err != nil {
			rep.Golden.Error = err.Error()
			if errors.Is(err, golden.ErrMissingVersion) {
				degrade("no golden data for the device VNDK version")
			} else {
				degrade("golden data invalid")
			}
		} else {
			rep.Golden.Valid = true
		}
	}

	if _, err := support.LoadSigningKey(cfg.Paths.SigningKey); err == nil {
		rep.Signing.Configured = true
	}
	return rep
}

func (a *app) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites and write doctor.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep := buildDoctorReport(a.cfg, a.cfgPath)
			path := filepath.Join(a.cfg.Paths.OutputDir, "doctor.json")
			if err := support.WriteJSONAtomic(path, rep); err != nil {
				return fmt.Errorf("cannot write doctor.json: %w", err)
			}
			for _, r := range rep.Reasons {
				fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s\n", r)
			}
			if !rep.Signing.Configured {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: no signing key; certificates will be unsigned")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Doctor status: %s\n", rep.Status)
			if rep.Status != "OK" {
				return errFailed
			}
			return nil
		},
	}
}
