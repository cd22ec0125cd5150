package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrSecretTooShort  = errors.New("jwt secret must be at least 32 bytes")
	ErrUnsupportedAlgo = errors.New("unsupported signing algorithm")
)

// KeyProvider supplies the keys used to sign and verify tokens.
type KeyProvider interface {
	SigningMethod() jwt.SigningMethod
	KeyID() string
	SigningKey() (any, error)
	VerificationKey(kid string) (any, error)
}

// HMACKeyProvider signs with a shared secret (HS256).
type HMACKeyProvider struct {
	secret []byte
}

// NewHMACKeyProvider validates the secret length and returns a provider.
func NewHMACKeyProvider(secret string) (*HMACKeyProvider, error) {
	if len(secret) < 32 {
		return nil, ErrSecretTooShort
	}
	return &HMACKeyProvider{secret: []byte(secret)}, nil
}

func (p *HMACKeyProvider) SigningMethod() jwt.SigningMethod { return jwt.SigningMethodHS256 }

func (p *HMACKeyProvider) KeyID() string { return "hs256" }

func (p *HMACKeyProvider) SigningKey() (any, error) { return p.secret, nil }

// VerificationKey ignores kid: a single shared secret verifies every token.
func (p *HMACKeyProvider) VerificationKey(string) (any, error) { return p.secret, nil }

// RSAKeyProvider reads PEM keys from a directory. The first private key found
// (in file name order) signs; every key found verifies under its file stem as kid.
type RSAKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKID string
}

// NewRSAKeyProvider loads all PEM files in keyDir.
func NewRSAKeyProvider(keyDir string) (*RSAKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	provider := &RSAKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		if err := provider.add(kid, keyData); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if provider.signingKey == nil {
		return nil, errors.New("no private key found for signing")
	}

	return provider, nil
}

// NewRSAKeyProviderFromKey builds a provider around an in-memory key.
func NewRSAKeyProviderFromKey(kid string, key *rsa.PrivateKey) *RSAKeyProvider {
	return &RSAKeyProvider{
		keys:       map[string]*rsa.PublicKey{kid: &key.PublicKey},
		signingKey: key,
		signingKID: kid,
	}
}

func (p *RSAKeyProvider) add(kid string, keyData []byte) error {
	block, _ := pem.Decode(keyData)
	if block == nil {
		return errors.New("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		p.addPrivate(kid, key)
		return nil
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			p.addPrivate(kid, rsaKey)
			return nil
		}
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		p.keys[kid] = key
		return nil
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			p.keys[kid] = rsaKey
			return nil
		}
	}

	return errors.New("failed to parse RSA key")
}

func (p *RSAKeyProvider) addPrivate(kid string, key *rsa.PrivateKey) {
	if p.signingKey == nil {
		p.signingKey = key
		p.signingKID = kid
	}
	p.keys[kid] = &key.PublicKey
}

func (p *RSAKeyProvider) SigningMethod() jwt.SigningMethod { return jwt.SigningMethodRS256 }

func (p *RSAKeyProvider) KeyID() string { return p.signingKID }

func (p *RSAKeyProvider) SigningKey() (any, error) { return p.signingKey, nil }

func (p *RSAKeyProvider) VerificationKey(kid string) (any, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// NewKeyProvider selects a provider by algorithm name (HS256 or RS256).
func NewKeyProvider(algorithm, secret, keyDir string) (KeyProvider, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		return NewHMACKeyProvider(secret)
	case "RS256":
		return NewRSAKeyProvider(keyDir)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgo, algorithm)
	}
}
