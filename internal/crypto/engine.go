// Package crypto implements the symmetric engine that secures registry
// fields: a PBKDF2-HMAC-SHA256 derived 256-bit key feeding AES-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"dbconnect/internal/dberr"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations follows the OWASP recommendation for
	// PBKDF2-HMAC-SHA256.
	DefaultIterations = 480000

	saltLength     = 16
	passwordLength = 32
	keyLength      = 32
)

// decryptFailedMsg is deliberately uniform across malformed input,
// tampered data and key mismatch.
const decryptFailedMsg = "decryption failed: data corrupted or key mismatch"

// KeyMaterial is the persistable form of an engine's key inputs. Losing
// it makes every ciphertext produced by the engine unreadable.
type KeyMaterial struct {
	Password   string `toml:"password"`
	Salt       string `toml:"salt"`
	Iterations int    `toml:"iterations"`
}

// Engine performs authenticated symmetric encryption of registry fields.
type Engine struct {
	password   string
	salt       []byte
	iterations int
	aead       cipher.AEAD
}

// New creates an engine with a freshly generated random password and
// salt.
func New() (*Engine, error) {
	pw := make([]byte, passwordLength)
	if _, err := io.ReadFull(rand.Reader, pw); err != nil {
		return nil, dberr.Wrap(dberr.KindCrypto, "generating password", err)
	}
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, dberr.Wrap(dberr.KindCrypto, "generating salt", err)
	}
	return newEngine(base64.URLEncoding.EncodeToString(pw), salt, DefaultIterations)
}

// Restore rebuilds an engine from previously exported key material. The
// result decrypts byte-identically to the exporting engine.
func Restore(material KeyMaterial) (*Engine, error) {
	if material.Password == "" || material.Salt == "" {
		return nil, dberr.New(dberr.KindCrypto, "key material is missing password or salt")
	}
	salt, err := base64.URLEncoding.DecodeString(material.Salt)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindCrypto, "decoding salt", err)
	}
	iterations := material.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return newEngine(material.Password, salt, iterations)
}

func newEngine(password string, salt []byte, iterations int) (*Engine, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindCrypto, "creating cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindCrypto, "creating GCM", err)
	}
	return &Engine{
		password:   password,
		salt:       salt,
		iterations: iterations,
		aead:       aead,
	}, nil
}

// Encrypt seals a plaintext string and returns url-safe base64 of
// nonce || ciphertext, safe for embedding in the TOML registry.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", dberr.New(dberr.KindCrypto, "plaintext must not be empty")
	}
	sealed, err := e.EncryptBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Tampered data and a key
// mismatch are deliberately indistinguishable.
func (e *Engine) Decrypt(token string) (string, error) {
	if token == "" {
		return "", dberr.New(dberr.KindCrypto, "ciphertext must not be empty")
	}
	sealed, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		// Malformed input is reported the same way as tamper or key
		// mismatch.
		return "", dberr.New(dberr.KindCrypto, decryptFailedMsg)
	}
	plain, err := e.DecryptBytes(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptBytes seals raw bytes, returning nonce || ciphertext.
func (e *Engine) EncryptBytes(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, dberr.New(dberr.KindCrypto, "plaintext must not be empty")
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, dberr.Wrap(dberr.KindCrypto, "generating nonce", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBytes opens nonce || ciphertext.
func (e *Engine) DecryptBytes(sealed []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, dberr.New(dberr.KindCrypto, decryptFailedMsg)
	}
	nonce, ct := sealed[:nonceSize], sealed[nonceSize:]
	plain, err := e.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		// Do not leak whether the data was tampered with or the key
		// simply does not match.
		return nil, dberr.New(dberr.KindCrypto, decryptFailedMsg)
	}
	return plain, nil
}

// KeyMaterial exports the engine's key inputs for persistence. The
// caller owns secure storage of the result.
func (e *Engine) KeyMaterial() KeyMaterial {
	return KeyMaterial{
		Password:   e.password,
		Salt:       base64.URLEncoding.EncodeToString(e.salt),
		Iterations: e.iterations,
	}
}

// Verify round-trips a probe value and reports whether the engine is
// functional. It never returns an error.
func (e *Engine) Verify() bool {
	const probe = "dbconnect-crypto-probe"
	token, err := e.Encrypt(probe)
	if err != nil {
		return false
	}
	plain, err := e.Decrypt(token)
	return err == nil && plain == probe
}

// String implements fmt.Stringer without exposing key material.
func (e *Engine) String() string {
	return fmt.Sprintf("crypto.Engine(iterations=%d, salt_len=%d)", e.iterations, len(e.salt))
}
