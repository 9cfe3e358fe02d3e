package key

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

const bits = 4096

type Pair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// JWK is the registry wire form of a public key: modulus and exponent as
// base64url-encoded big-endian bytes, no padding.
type JWK struct {
	Modulus  string `json:"modulus"`
	Exponent string `json:"exponent"`
}

func Generate() (*Pair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &Pair{Private: privateKey, Public: &privateKey.PublicKey}, nil
}

func (p *Pair) PublicJWK() JWK {
	exponent := big.NewInt(int64(p.Public.E))
	return JWK{
		Modulus:  base64.RawURLEncoding.EncodeToString(p.Public.N.Bytes()),
		Exponent: base64.RawURLEncoding.EncodeToString(exponent.Bytes()),
	}
}
