package signature

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadTrustedCertificates loads the identity provider certificates used to
// verify assertion signatures from a PEM file. A file may hold several
// certificates to cover key rollover.
func LoadTrustedCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}
	certs, err := ParseCertificates(data)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return certs, nil
}

// ParseCertificates parses all CERTIFICATE blocks of PEM data.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		data = rest
	}
	return certs, nil
}
