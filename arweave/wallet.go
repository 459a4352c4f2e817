package arweave

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Signer produces ANS-104 signatures.
type Signer interface {
	// Owner is the public key of the Signer, as carried in the data item
	// owner field.
	Owner() []byte
	// Sign the deep-hash |message|.
	Sign(message []byte) ([]byte, error)
}

// OwnerLength is the byte length of an Arweave (RSA-4096) owner and signature.
const OwnerLength = 512

// Wallet is an Arweave RSA wallet, parsed from its JSON Web Key encoding.
type Wallet struct {
	key *rsa.PrivateKey
}

var _ Signer = (*Wallet)(nil) // Wallet is-a Signer.

// jwk is the subset of JSON Web Key fields used by Arweave wallets.
type jwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
	Dp  string `json:"dp"`
	Dq  string `json:"dq"`
	Qi  string `json:"qi"`
}

// ErrMalformedWallet is returned when a wallet cannot be parsed.
var ErrMalformedWallet = errors.New("malformed wallet")

// ParseWallet parses a JWK-encoded Arweave wallet.
func ParseWallet(b []byte) (*Wallet, error) {
	var k jwk
	if err := json.Unmarshal(b, &k); err != nil {
		return nil, errors.Wrap(ErrMalformedWallet, err.Error())
	} else if k.Kty != "RSA" {
		return nil, errors.WithMessagef(ErrMalformedWallet, "unsupported key type %q", k.Kty)
	}

	var fields = map[string]string{"n": k.N, "e": k.E, "d": k.D, "p": k.P, "q": k.Q}
	var ints = make(map[string]*big.Int, len(fields))
	for name, value := range fields {
		if value == "" {
			return nil, errors.WithMessagef(ErrMalformedWallet, "missing field %q", name)
		}
		var raw, err = decodeB64URL(value)
		if err != nil {
			return nil, errors.WithMessagef(ErrMalformedWallet, "decoding field %q: %s", name, err)
		}
		ints[name] = new(big.Int).SetBytes(raw)
	}

	var key = &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: ints["n"], E: int(ints["e"].Int64())},
		D:         ints["d"],
		Primes:    []*big.Int{ints["p"], ints["q"]},
	}
	if err := key.Validate(); err != nil {
		return nil, errors.Wrap(ErrMalformedWallet, err.Error())
	}
	key.Precompute()

	return NewWallet(key)
}

// NewWallet returns a Wallet of the RSA |key|, which must be 4096 bits.
func NewWallet(key *rsa.PrivateKey) (*Wallet, error) {
	if l := (key.N.BitLen() + 7) / 8; l != OwnerLength {
		return nil, errors.WithMessagef(ErrMalformedWallet, "modulus is %d bytes (expected %d)", l, OwnerLength)
	}
	return &Wallet{key: key}, nil
}

// DecodeDeployKey parses a wallet from the standard base64 encoding of its
// JWK JSON, as produced by `base64 < wallet.json`.
func DecodeDeployKey(encoded string) (*Wallet, error) {
	var b, err = base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, errors.Wrap(ErrMalformedWallet, "deploy key is not valid base64")
	}
	return ParseWallet(b)
}

// LoadWalletFile reads and parses a JWK wallet file from |fs|.
func LoadWalletFile(fs afero.Fs, path string) (*Wallet, error) {
	var b, err = afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WithMessage(err, "reading wallet file")
	}
	return ParseWallet(b)
}

// Owner returns the big-endian RSA modulus, left-padded to OwnerLength.
func (w *Wallet) Owner() []byte {
	return w.key.N.FillBytes(make([]byte, OwnerLength))
}

// Address returns the wallet's Arweave address.
func (w *Wallet) Address() string { return OwnerAddress(w.Owner()) }

// OwnerAddress returns the Arweave address of |owner|: the base64url SHA-256
// of its public key.
func OwnerAddress(owner []byte) string {
	var sum = sha256.Sum256(owner)
	return EncodeB64URL(sum[:])
}

// Sign |message| using RSA-PSS over SHA-256.
func (w *Wallet) Sign(message []byte) ([]byte, error) {
	return jwt.SigningMethodPS256.Sign(string(message), w.key)
}

// Verify that |signature| of |message| was produced by |owner|.
func Verify(owner, message, signature []byte) error {
	var pub = &rsa.PublicKey{N: new(big.Int).SetBytes(owner), E: 65537}
	return jwt.SigningMethodPS256.Verify(string(message), signature, pub)
}

// EncodeB64URL encodes |b| as unpadded base64url, the encoding of Arweave identifiers.
func EncodeB64URL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func decodeB64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// DecodeID decodes a 32-byte base64url Arweave identifier (a transaction,
// data item, or AO process id).
func DecodeID(id string) ([]byte, error) {
	var b, err = decodeB64URL(id)
	if err != nil {
		return nil, errors.Errorf("invalid identifier %q: %s", id, err)
	} else if len(b) != 32 {
		return nil, errors.Errorf("invalid identifier %q: decodes to %d bytes (expected 32)", id, len(b))
	}
	return b, nil
}
