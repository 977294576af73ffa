package support

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// SigningKeyEnv overrides the signing key file.
const SigningKeyEnv = "VNDKDEP_SIGNING_PRIVATE_KEY"

// Certificate attests the verdict of one check run.
type Certificate struct {
	Version        string            `json:"version"`
	GeneratedAtUtc string            `json:"generatedAtUtc"`
	Command        string            `json:"command"`
	Pass           bool              `json:"pass"`
	Reason         string            `json:"reason"`
	VndkVersion    string            `json:"vndkVersion"`
	Enforced       bool              `json:"enforced"`
	Bitnesses      []int             `json:"bitnesses"`
	ReadErrors     int               `json:"readErrors"`
	Violations     int               `json:"violations"`
	Waived         int               `json:"waived"`
	EvidenceHashes map[string]string `json:"evidence_hashes,omitempty"`
	Signature      string            `json:"signature,omitempty"`
	// SignatureMethod is "ed25519" for signed certificates.
	SignatureMethod string `json:"signature_method,omitempty"`
}

func NewCertificate(command string) Certificate {
	return Certificate{
		Version:        "1.0",
		GeneratedAtUtc: time.Now().UTC().Format(time.RFC3339),
		Command:        command,
	}
}

func SignCertificate(cert *Certificate, priv ed25519.PrivateKey) error {
	payload, err := marshalCertPayload(cert)
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, payload)
	cert.Signature = base64.StdEncoding.EncodeToString(sig)
	cert.SignatureMethod = "ed25519"
	return nil
}

func VerifyCertificate(cert *Certificate, pub ed25519.PublicKey) (bool, error) {
	if cert.Signature == "" {
		return false, errors.New("missing signature")
	}
	sig, err := base64.StdEncoding.DecodeString(cert.Signature)
	if err != nil {
		return false, err
	}
	payload, err := marshalCertPayload(cert)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, payload, sig), nil
}

// LoadSigningKey reads the private key from SigningKeyEnv or from path.
// The key is a base64 or hex encoded seed or full private key.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	if env := os.Getenv(SigningKeyEnv); env != "" {
		return decodePrivateKey(env)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodePrivateKey(string(data))
}

// LoadCertificate reads a certificate file.
func LoadCertificate(path string) (*Certificate, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var cert Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate %s: %w", path, err)
	}
	return &cert, data, nil
}

func decodePrivateKey(raw string) (ed25519.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty key")
	}
	// A hex seed is also valid base64, so try hex first.
	if b, err := hex.DecodeString(raw); err == nil {
		return normalizePrivateKey(b)
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return normalizePrivateKey(b)
	}
	return nil, errors.New("invalid private key format")
}

func normalizePrivateKey(b []byte) (ed25519.PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	}
	return nil, fmt.Errorf("invalid key length: %d", len(b))
}

func marshalCertPayload(cert *Certificate) ([]byte, error) {
	tmp := *cert
	tmp.Signature = ""
	tmp.SignatureMethod = ""
	return json.Marshal(tmp)
}

func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
