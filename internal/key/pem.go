package key

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

type ParseError struct {
	cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse private key: %v", e.cause)
}

func (e *ParseError) Unwrap() error {
	return e.cause
}

// DecodePEM parses a PEM-encoded RSA private key, trying PKCS8 first and
// falling back to PKCS1. The public half is derived from the private key.
func DecodePEM(data []byte) (*Pair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &ParseError{cause: errors.New("no PEM block found")}
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		privateKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, &ParseError{cause: fmt.Errorf("not an RSA key: %T", parsed)}
		}
		return &Pair{Private: privateKey, Public: &privateKey.PublicKey}, nil
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, &ParseError{cause: err}
	}
	return &Pair{Private: privateKey, Public: &privateKey.PublicKey}, nil
}

func (p *Pair) EncodePrivatePEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(p.Private)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func LoadFile(path string) (*Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	pair, err := DecodePEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load key file %s: %w", path, err)
	}
	return pair, nil
}

func (p *Pair) WriteFile(path string) error {
	data, err := p.EncodePrivatePEM()
	if err != nil {
		return err
	}
	// Private key material, owner-only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return nil
}
