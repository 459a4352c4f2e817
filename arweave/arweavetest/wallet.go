// Package arweavetest provides Arweave wallet fixtures for tests.
package arweavetest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.permalaunch.dev/core/arweave"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key returns an RSA-4096 key which is generated once per test process.
func Key(t testing.TB) *rsa.PrivateKey {
	keyOnce.Do(func() { key, keyErr = rsa.GenerateKey(rand.Reader, 4096) })
	require.NoError(t, keyErr)
	return key
}

// Wallet returns an arweave.Wallet of Key.
func Wallet(t testing.TB) *arweave.Wallet {
	var w, err = arweave.NewWallet(Key(t))
	require.NoError(t, err)
	return w
}

// JWK returns the JSON Web Key encoding of Key, as found in a wallet.json.
func JWK(t testing.TB) []byte {
	var k = Key(t)
	var enc = func(i *big.Int) string { return arweave.EncodeB64URL(i.Bytes()) }

	var b, err = json.Marshal(map[string]string{
		"kty": "RSA",
		"n":   enc(k.N),
		"e":   enc(big.NewInt(int64(k.E))),
		"d":   enc(k.D),
		"p":   enc(k.Primes[0]),
		"q":   enc(k.Primes[1]),
		"dp":  enc(k.Precomputed.Dp),
		"dq":  enc(k.Precomputed.Dq),
		"qi":  enc(k.Precomputed.Qinv),
	})
	require.NoError(t, err)
	return b
}
