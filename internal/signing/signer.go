// Package signing produces the detached signature and content hash that
// accompany a submitted document.
package signing

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/hypernova-labs/zatca-service/internal/config"
)

// ErrKeyUnavailable is returned when no key material is configured. An
// invoice can never be submitted unsigned, so this is fatal for the attempt.
var ErrKeyUnavailable = errors.New("no signing key material configured")

// Grade marks whether a signature is production-worthy
type Grade string

const (
	// GradeProduction means the signature is bound to configured key material
	GradeProduction Grade = "production"
	// GradeStub means the signature came from the fallback secret and must
	// never be presented as compliant
	GradeStub Grade = "stub"
)

// Result represents a detached signature and its grade
type Result struct {
	Signature string `json:"signature"`
	Grade     Grade  `json:"grade"`
}

// Signer produces detached signatures over serialized documents
type Signer struct {
	key    *ecdsa.PrivateKey
	cert   *x509.Certificate
	stub   []byte
	logger *logrus.Logger
}

// NewSigner loads the configured key material. A configured path that cannot
// be loaded is a startup error; having no material at all is not, signing
// just fails per invoice until keys are provisioned.
func NewSigner(cfg config.SigningConfig, logger *logrus.Logger) (*Signer, error) {
	s := &Signer{logger: logger}

	if cfg.PrivateKeyPath != "" {
		key, err := loadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("error loading signing key: %w", err)
		}
		s.key = key
	}

	if cfg.CertificatePath != "" {
		cert, err := loadCertificate(cfg.CertificatePath)
		if err != nil {
			return nil, fmt.Errorf("error loading signing certificate: %w", err)
		}
		s.cert = cert
		logger.WithField("subject", cert.Subject.CommonName).Info("Loaded signing certificate")
	}

	if s.key == nil && cfg.StubSecret != "" {
		s.stub = []byte(cfg.StubSecret)
		logger.Warn("Signer running in stub mode, signatures are not compliant")
	}

	if s.key == nil && s.stub == nil {
		logger.Warn("No signing key material configured, submissions will fail until keys are provisioned")
	}

	return s, nil
}

// Sign produces a detached signature over the document bytes. With key
// material present the signature is ECDSA over the SHA-256 digest; the stub
// fallback is an HMAC and is explicitly marked as such.
func (s *Signer) Sign(document []byte) (*Result, error) {
	switch {
	case s.key != nil:
		digest := sha256.Sum256(document)
		sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
		if err != nil {
			return nil, fmt.Errorf("error signing document: %w", err)
		}
		return &Result{
			Signature: base64.StdEncoding.EncodeToString(sig),
			Grade:     GradeProduction,
		}, nil

	case len(s.stub) > 0:
		mac := hmac.New(sha256.New, s.stub)
		mac.Write(document)
		return &Result{
			Signature: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
			Grade:     GradeStub,
		}, nil

	default:
		return nil, ErrKeyUnavailable
	}
}

// Hash returns the hex SHA-256 content hash the submission payload carries
func Hash(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// loadPrivateKey reads a PEM-encoded ECDSA private key (SEC 1 or PKCS#8)
func loadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T, expected ECDSA", parsed)
	}
	return key, nil
}

// loadCertificate reads a PEM-encoded X.509 certificate
func loadCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing certificate: %w", err)
	}
	return cert, nil
}
