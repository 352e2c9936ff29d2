// Package signer defines the opaque signing capability consumed by the
// execution coordinator. The engine never touches raw key material; key
// generation and custody live outside the core.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/dcastillo/soltrade/pkg/types"
)

// Signer signs venue-built transactions on behalf of an account.
type Signer interface {
	// PublicKey returns the base64 public key for an account, used when a
	// venue builds the transaction.
	PublicKey(ctx context.Context, account string) (string, error)

	// Sign signs the transaction. Fails with types.ErrSignerUnavailable or
	// types.ErrUserRejected.
	Sign(ctx context.Context, account string, txn *types.UnsignedTransaction) (*types.SignedTransaction, error)
}

// Local is an in-process ed25519 signer holding keys handed to it at
// startup. It stands in for an external signing service in single-binary
// deployments and in tests.
type Local struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

// NewLocal creates an empty local signer.
func NewLocal() *Local {
	return &Local{keys: make(map[string]ed25519.PrivateKey)}
}

// AddKey registers a signing key for an account.
func (l *Local) AddKey(account string, key ed25519.PrivateKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[account] = key
}

func (l *Local) key(account string) (ed25519.PrivateKey, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	key, ok := l.keys[account]
	if !ok {
		return nil, fmt.Errorf("%w: no key for account %s", types.ErrSignerUnavailable, account)
	}
	return key, nil
}

// PublicKey returns the account's base64-encoded public key.
func (l *Local) PublicKey(ctx context.Context, account string) (string, error) {
	key, err := l.key(account)
	if err != nil {
		return "", err
	}
	pub := key.Public().(ed25519.PublicKey)
	return base64.StdEncoding.EncodeToString(pub), nil
}

// Sign decodes the venue's transaction payload, signs it and re-encodes the
// envelope: a 64-byte signature followed by the message bytes.
func (l *Local) Sign(ctx context.Context, account string, txn *types.UnsignedTransaction) (*types.SignedTransaction, error) {
	key, err := l.key(account)
	if err != nil {
		return nil, err
	}

	message, err := base64.StdEncoding.DecodeString(txn.Base64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %v", types.ErrSignerUnavailable, err)
	}

	signature := ed25519.Sign(key, message)
	envelope := make([]byte, 0, len(signature)+len(message))
	envelope = append(envelope, signature...)
	envelope = append(envelope, message...)

	return &types.SignedTransaction{
		Base64: base64.StdEncoding.EncodeToString(envelope),
	}, nil
}

var _ Signer = (*Local)(nil)
