package support

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// AuditEntry is one line of the run history.
type AuditEntry struct {
	TimestampUtc   string `json:"timestampUtc"`
	Command        string `json:"command"`
	MirrorRoot     string `json:"mirrorRoot"`
	VndkVersion    string `json:"vndkVersion,omitempty"`
	Enforced       bool   `json:"enforced"`
	Files          int    `json:"files"`
	ReadErrors     int    `json:"readErrors"`
	Violations     int    `json:"violations"`
	Waived         int    `json:"waived"`
	CertificateSHA string `json:"certificate_hash,omitempty"`
	Result         string `json:"result,omitempty"`
}

// AppendAudit appends entry as a JSON line to <outputDir>/audit.log.
func AppendAudit(outputDir string, entry AuditEntry) error {
	entry.TimestampUtc = time.Now().UTC().Format(time.RFC3339)
	path := filepath.Join(outputDir, "audit.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}
