package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// ServerTLSConfig builds the tls.Config a control service listener uses:
// it presents cert for its own identity and requires every connecting
// agent to present one signed by the same CA. Mirrors
// cuemby-warren's pkg/api/server.go mTLS setup, tightened from
// RequestClientCert to RequireAndVerifyClientCert since vessel has no
// unauthenticated bootstrap RPC equivalent to RequestCertificate.
func ServerTLSConfig(cert *tls.Certificate, caCertDER []byte) (*tls.Config, error) {
	pool, err := certPoolFromDER(caCertDER)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ClientTLSConfig builds the tls.Config an agent or CLI uses to dial the
// control service: present cert for its own identity, verify the
// control service's certificate against the same CA.
func ClientTLSConfig(cert *tls.Certificate, caCertDER []byte, serverName string) (*tls.Config, error) {
	pool, err := certPoolFromDER(caCertDER)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func certPoolFromDER(der []byte) (*x509.CertPool, error) {
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("security: parse CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	return pool, nil
}
