package storage

import (
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/techblitz/techblitz-go/internal/util"
)

const (
	envelopeVer    = 1
	envelopeScheme = "aes256gcm"

	aadPrefix  = "state:"
	keyContext = "techblitz:state:v1"
)

// Envelope is a sealed record containing AES-256-GCM encrypted data.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Sealer encrypts and decrypts state records. The sealing key is derived
// from a caller-provided secret and kept in a memguard Enclave, so it is
// encrypted at rest in memory between uses.
type Sealer struct {
	key *memguard.Enclave
}

// NewSealer derives the sealing key from secret. The secret must be
// supplied externally (OS keychain, environment) and is never persisted.
func NewSealer(secret []byte) (*Sealer, error) {
	key, err := util.DeriveKey(secret, nil, keyContext)
	if err != nil {
		return nil, fmt.Errorf("deriving sealing key: %w", err)
	}
	// NewEnclave wipes the input slice after sealing it.
	return &Sealer{key: memguard.NewEnclave(key)}, nil
}

// Seal encrypts plaintext into an Envelope bound to the record key.
func (s *Sealer) Seal(recordKey string, plaintext []byte) (*Envelope, error) {
	kb, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening sealing key: %w", err)
	}
	defer kb.Destroy()

	cipher, err := util.EncryptWithAAD(plaintext, kb.Bytes(), aad(recordKey))
	if err != nil {
		return nil, err
	}
	// util.EncryptWithAAD returns nonce || ciphertext.
	return &Envelope{
		Ver:        envelopeVer,
		Scheme:     envelopeScheme,
		Nonce:      cipher[:12],
		Ciphertext: cipher[12:],
	}, nil
}

// Open decrypts an Envelope previously produced by Seal under the same
// record key.
func (s *Sealer) Open(recordKey string, envelope *Envelope) ([]byte, error) {
	if envelope.Ver != envelopeVer {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != envelopeScheme {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}

	kb, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening sealing key: %w", err)
	}
	defer kb.Destroy()

	full := make([]byte, len(envelope.Nonce)+len(envelope.Ciphertext))
	copy(full, envelope.Nonce)
	copy(full[len(envelope.Nonce):], envelope.Ciphertext)

	return util.DecryptWithAAD(full, kb.Bytes(), aad(recordKey))
}

func aad(recordKey string) []byte {
	return []byte(aadPrefix + recordKey)
}
