// Package cryptox implements the payload cipher shared with the measurement
// kiosks: AES-256-CBC with PKCS#7 padding, serialised as "ivHex:cipherHex".
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	ErrMalformedBlob = errors.New("malformed encrypted blob")
	ErrBadPadding    = errors.New("bad padding")
)

// ParseKey turns the configured secret into an AES-256 key. A 64 character
// hex string is used verbatim. Any other non-empty secret is treated as a
// passphrase and stretched with argon2id using salt.
func ParseKey(secret, salt string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, common.ErrInvalidKey
	}
	if len(secret) == 2*KeySize {
		if key, err := hex.DecodeString(secret); err == nil {
			return key, nil
		}
	}
	if salt == "" {
		return nil, fmt.Errorf("%w: passphrase requires a salt", common.ErrInvalidKey)
	}
	return DeriveKey([]byte(secret), []byte(salt)), nil
}

// DeriveKey derives a 32 byte key from a passphrase with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// Codec encrypts and decrypts payload blobs with a fixed key.
type Codec struct {
	block cipher.Block
}

// NewCodec returns a Codec for a 32 byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", common.ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Codec{block: block}, nil
}

// Encrypt seals plaintext under a fresh random IV and returns "ivHex:cipherHex".
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	iv := common.GenerateRandByteArray(aes.BlockSize)

	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed input yields an
// error; Decrypt never panics on untrusted data.
func (c *Codec) Decrypt(blob string) ([]byte, error) {
	ivHex, dataHex, ok := strings.Cut(strings.TrimSpace(blob), ":")
	if !ok {
		return nil, ErrMalformedBlob
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv", ErrMalformedBlob)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext", ErrMalformedBlob)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, data)

	return unpad(out, aes.BlockSize)
}

// EncryptEntry serializes entry to JSON and encrypts it.
func (c *Codec) EncryptEntry(entry any) (string, error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

// DecryptEntry decrypts blob and unmarshals the JSON plaintext into v.
func (c *Codec) DecryptEntry(blob string, v any) error {
	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	return json.Unmarshal(plaintext, v)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrBadPadding
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
