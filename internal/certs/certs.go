// Package certs creates and loads the self-signed certificate the host
// serves wss:// with when no certificate is configured.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var pkgLogger *log.Logger

func logger() *log.Logger {
	if pkgLogger == nil {
		pkgLogger = log.WithPrefix("certs")
	}
	return pkgLogger
}

const (
	certFile = "host.crt"
	keyFile  = "host.key"

	defaultValidity = 365 * 24 * time.Hour
)

// Options controls certificate generation.
type Options struct {
	// Dir holds host.crt and host.key.
	Dir string

	// Hosts become the certificate's SANs. Default: localhost, 127.0.0.1.
	Hosts []string

	// Validity defaults to one year.
	Validity time.Duration
}

// Pair describes a certificate on disk.
type Pair struct {
	CertPath string
	KeyPath  string

	// Fingerprint is the SHA-256 of the certificate as "AA:BB:...".
	Fingerprint string
	NotAfter    time.Time

	// Generated is true when Ensure had to create the pair.
	Generated bool
}

// Ensure loads the pair in opts.Dir, generating it first if either file is
// missing or the certificate has expired.
func Ensure(opts Options) (*Pair, error) {
	if opts.Dir == "" {
		return nil, errors.New("certificate directory is required")
	}
	certPath := filepath.Join(opts.Dir, certFile)
	keyPath := filepath.Join(opts.Dir, keyFile)

	if fileExists(certPath) && fileExists(keyPath) {
		p, err := Load(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		if time.Now().Before(p.NotAfter) {
			return p, nil
		}
		logger().Warn("certificate expired, generating a new one", "path", certPath, "expired", p.NotAfter)
	}
	return generate(certPath, keyPath, opts)
}

// Load reads an existing pair.
func Load(certPath, keyPath string) (*Pair, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate pair: %w", err)
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return &Pair{
		CertPath:    certPath,
		KeyPath:     keyPath,
		Fingerprint: Fingerprint(parsed),
		NotAfter:    parsed.NotAfter,
	}, nil
}

func generate(certPath, keyPath string, opts Options) (*Pair, error) {
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}
	validity := opts.Validity
	if validity <= 0 {
		validity = defaultValidity
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"mergehost"}, CommonName: "mergehost"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(certPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create certificate directory: %w", err)
	}
	if err := writePEM(certPath, "CERTIFICATE", der, 0o644); err != nil {
		return nil, err
	}
	if err := writePEM(keyPath, "PRIVATE KEY", keyDER, 0o600); err != nil {
		return nil, err
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}
	logger().Info("generated self-signed certificate", "path", certPath, "hosts", hosts)
	return &Pair{
		CertPath:    certPath,
		KeyPath:     keyPath,
		Fingerprint: Fingerprint(parsed),
		NotAfter:    parsed.NotAfter,
		Generated:   true,
	}, nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Fingerprint returns the certificate's SHA-256 as colon-separated
// uppercase hex pairs.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	parts := make([]string, 0, len(sum))
	for i := 0; i < len(h); i += 2 {
		parts = append(parts, h[i:i+2])
	}
	return strings.Join(parts, ":")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
