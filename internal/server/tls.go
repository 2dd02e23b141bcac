package server

import (
	"crypto/tls"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NewTLSConfig loads a certificate and key pair for the HTTPS listener.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	if certPath == "" || keyPath == "" {
		return nil, fmt.Errorf("both certificate and key are required (cert=%q key=%q)", certPath, keyPath)
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	if cert.Leaf != nil && time.Now().After(cert.Leaf.NotAfter) {
		return nil, fmt.Errorf("TLS certificate %s expired on %s", certPath, cert.Leaf.NotAfter.Format(time.DateOnly))
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// tlsFields describes cfg for the startup log line.
func tlsFields(cfg *tls.Config) []zap.Field {
	if cfg == nil {
		return []zap.Field{zap.Bool("tls", false)}
	}
	fields := []zap.Field{
		zap.Bool("tls", true),
		zap.String("min_version", tls.VersionName(cfg.MinVersion)),
	}
	if len(cfg.Certificates) > 0 && cfg.Certificates[0].Leaf != nil {
		leaf := cfg.Certificates[0].Leaf
		fields = append(fields,
			zap.String("subject", leaf.Subject.CommonName),
			zap.Time("not_after", leaf.NotAfter),
		)
	}
	return fields
}
