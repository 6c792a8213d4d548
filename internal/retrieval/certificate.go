package retrieval

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// CertificateInfo summarizes an A1 certificate.
type CertificateInfo struct {
	Subject  string
	NotAfter time.Time
}

// CheckCertificate opens an A1 (.pfx/.p12) certificate with password so that
// a wrong password or an expired certificate is rejected before a run starts.
func CheckCertificate(path, password string, now time.Time) (CertificateInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CertificateInfo{}, &ValidationError{
			Message: fmt.Sprintf("Certificate could not be read: %v", err),
			Err:     err,
		}
	}

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return CertificateInfo{}, invalid("Certificate password is incorrect")
		}
		return CertificateInfo{}, invalid("Certificate could not be opened: %v", err)
	}

	var (
		leaf   *x509.Certificate
		hasKey bool
	)
	for _, block := range blocks {
		switch block.Type {
		case "PRIVATE KEY":
			hasKey = true
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return CertificateInfo{}, invalid("Certificate could not be parsed: %v", err)
			}
			if leaf == nil && !cert.IsCA {
				leaf = cert
			}
		}
	}
	if leaf == nil {
		return CertificateInfo{}, invalid("Certificate file holds no end-entity certificate")
	}
	if !hasKey {
		return CertificateInfo{}, invalid("Certificate file holds no private key")
	}

	info := CertificateInfo{Subject: leaf.Subject.CommonName, NotAfter: leaf.NotAfter}
	if now.After(leaf.NotAfter) {
		return info, invalid("Certificate expired on %s", leaf.NotAfter.Format(DateLayout))
	}
	return info, nil
}
