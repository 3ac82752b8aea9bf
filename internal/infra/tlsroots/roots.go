package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoCertsFound is returned when a PEM file holds no certificates.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM file")

	// ErrNoCertificate is returned when a server config has no certificate source.
	ErrNoCertificate = errors.New("tlsroots: server certificate required")
)

// LoadPool returns a pool holding the certificates in the given PEM files.
// With withSystem set the system roots are included as well.
func LoadPool(withSystem bool, files ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if withSystem {
		if sys, err := x509.SystemCertPool(); err == nil {
			pool = sys
		}
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read cert file %s: %w", f, err)
		}
		if err := appendPEM(pool, data); err != nil {
			return nil, fmt.Errorf("tlsroots: %s: %w", f, err)
		}
	}
	return pool, nil
}

func appendPEM(pool *x509.CertPool, data []byte) error {
	var added int
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		added++
	}
	if added == 0 {
		return ErrNoCertsFound
	}
	return nil
}

// ClientOptions configures ClientConfig.
type ClientOptions struct {
	// CAFile adds a private CA to the system roots.
	CAFile     string
	ServerName string
	// Insecure skips server certificate verification.
	Insecure bool
	// CertFile and KeyFile present a client certificate.
	CertFile string
	KeyFile  string
}

// ClientConfig builds the tls.Config respkv-cli dials with.
func ClientConfig(opts ClientOptions) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         opts.ServerName,
		InsecureSkipVerify: opts.Insecure,
		MinVersion:         tls.VersionTLS12,
	}
	if opts.CAFile != "" {
		pool, err := LoadPool(true, opts.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// ServerConfig builds the listener tls.Config. Certificates come from
// the reloader; a non-empty clientCAFile requires and verifies client
// certificates against it.
func ServerConfig(certs *Watcher, clientCAFile string) (*tls.Config, error) {
	if certs == nil {
		return nil, ErrNoCertificate
	}
	cfg := &tls.Config{
		GetCertificate: certs.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAFile != "" {
		pool, err := LoadPool(false, clientCAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}
