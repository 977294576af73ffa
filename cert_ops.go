package main

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ajranjith/vndk-depcheck/internal/config"
	"github.com/ajranjith/vndk-depcheck/internal/support"
)

func certificatePath(cfg config.Config) string {
	return filepath.Join(cfg.Paths.OutputDir, "certificate.json")
}

// writeCertificate records the verdict and the hashes of the reports
// written in this run. The certificate is signed when a key is
// configured. It returns the hash of the written file.
func writeCertificate(cfg config.Config, path string, rep *checkReport) (string, error) {
	cert := support.NewCertificate("check")
	cert.Pass = rep.ErrorCount == 0
	cert.Reason = fmt.Sprintf("%s: %d errors", rep.Status, rep.ErrorCount)
	cert.VndkVersion = rep.Device.VndkVersion
	cert.Enforced = rep.Device.Enforced
	for _, p := range rep.Passes {
		cert.Bitnesses = append(cert.Bitnesses, p.Bitness)
	}
	cert.ReadErrors = len(rep.ReadErrors)
	cert.Violations = len(rep.Violations)
	cert.Waived = len(rep.Waived)
	cert.EvidenceHashes = collectEvidenceHashes(cfg)

	if priv, err := support.LoadSigningKey(cfg.Paths.SigningKey); err == nil {
		if err := support.SignCertificate(&cert, priv); err != nil {
			return "", err
		}
	}

	if err := support.WriteJSONAtomic(path, cert); err != nil {
		return "", err
	}
	return support.HashFile(path)
}

func evidencePaths(cfg config.Config) []string {
	var out []string
	for _, r := range []config.ReportConfig{cfg.Reports.JSON, cfg.Reports.SARIF, cfg.Reports.JUnit} {
		if r.IsEnabled() {
			out = append(out, r.Path)
		}
	}
	return out
}

func collectEvidenceHashes(cfg config.Config) map[string]string {
	hashes := map[string]string{}
	for _, path := range evidencePaths(cfg) {
		if h, err := support.HashFile(path); err == nil {
			hashes[filepath.ToSlash(path)] = h
		}
	}
	return hashes
}

// certCheck is the outcome of verifying a certificate file.
type certCheck struct {
	Hash      string
	Signed    bool
	Verified  bool
	Pass      bool
	Mismatch  []string
	Unchecked []string
}

// verifyCertificateFile checks the signature and that every evidence file
// still has the recorded hash.
func verifyCertificateFile(cfg config.Config, path string) (*certCheck, error) {
	cert, data, err := support.LoadCertificate(path)
	if err != nil {
		return nil, err
	}
	res := &certCheck{Hash: support.HashBytes(data), Signed: cert.Signature != "", Pass: cert.Pass}

	if res.Signed {
		priv, err := support.LoadSigningKey(cfg.Paths.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("cannot load signing key: %w", err)
		}
		ok, err := support.VerifyCertificate(cert, priv.Public().(ed25519.PublicKey))
		if err != nil {
			return nil, err
		}
		res.Verified = ok
	}

	keys := make([]string, 0, len(cert.EvidenceHashes))
	for k := range cert.EvidenceHashes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h, err := support.HashFile(filepath.FromSlash(k))
		switch {
		case errors.Is(err, os.ErrNotExist):
			res.Unchecked = append(res.Unchecked, k)
		case err != nil:
			return nil, err
		case h != cert.EvidenceHashes[k]:
			res.Mismatch = append(res.Mismatch, k)
		}
	}
	return res, nil
}

func (a *app) newVerifyCertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-cert [certificate.json]",
		Short: "Verify the signature and evidence of a check certificate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := certificatePath(a.cfg)
			if len(args) == 1 {
				path = args[0]
			}
			res, err := verifyCertificateFile(a.cfg, path)
			if err != nil {
				return err
			}
			out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
			for _, k := range res.Unchecked {
				fmt.Fprintf(errw, "WARNING: evidence file missing: %s\n", k)
			}
			for _, k := range res.Mismatch {
				fmt.Fprintf(errw, "ERROR: evidence file changed: %s\n", k)
			}
			switch {
			case !res.Signed:
				fmt.Fprintln(errw, "ERROR: certificate is not signed")
			case !res.Verified:
				fmt.Fprintln(errw, "ERROR: certificate signature mismatch")
			}
			if !res.Signed || !res.Verified || len(res.Mismatch) > 0 {
				return errFailed
			}
			fmt.Fprintf(out, "Certificate verified: %s (pass=%v)\n", res.Hash, res.Pass)
			return nil
		},
	}
}
