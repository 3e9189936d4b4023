package sui

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Signature scheme flag bytes as defined by the Sui cryptography spec.
// Only ed25519 is supported here.
const ed25519Flag byte = 0x00

// transactionDataIntent is the 3-byte intent prefix for transaction
// data (scope=TransactionData, version=V0, app=Sui).
var transactionDataIntent = []byte{0, 0, 0}

var (
	// ErrInvalidPrivateKey indicates the signer key could not be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrUnsupportedKeyFormat indicates a key encoding other than hex.
	ErrUnsupportedKeyFormat = errors.New("unsupported private key format")
)

// Signer signs Sui transactions with an ed25519 keypair.
type Signer struct {
	priv ed25519.PrivateKey
}

// NewSigner parses a hex-encoded 32-byte ed25519 seed, with or
// without a 0x prefix. Bech32 "suiprivkey" exports must be converted
// to hex before use.
func NewSigner(key string) (*Signer, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidPrivateKey)
	}
	if strings.HasPrefix(key, "suiprivkey") {
		return nil, fmt.Errorf("%w: bech32 keys are not supported, export the key as hex", ErrUnsupportedKeyFormat)
	}

	seed, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPrivateKey, len(seed), ed25519.SeedSize)
	}

	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Address derives the Sui address of the signer: the blake2b-256 hash
// of the scheme flag followed by the public key.
func (s *Signer) Address() string {
	pub := s.priv.Public().(ed25519.PublicKey)
	msg := append([]byte{ed25519Flag}, pub...)
	sum := blake2b.Sum256(msg)
	return "0x" + hex.EncodeToString(sum[:])
}

// SignTransaction signs base64-encoded BCS transaction bytes under
// the transaction-data intent and returns the serialized signature
// (flag || sig || pubkey, base64) expected by
// sui_executeTransactionBlock.
func (s *Signer) SignTransaction(txBytesB64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("decoding tx bytes: %w", err)
	}

	msg := append(append([]byte{}, transactionDataIntent...), txBytes...)
	digest := blake2b.Sum256(msg)
	sig := ed25519.Sign(s.priv, digest[:])

	pub := s.priv.Public().(ed25519.PublicKey)
	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)

	return base64.StdEncoding.EncodeToString(serialized), nil
}
