package security

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
)

const (
	// KeyLength is the AES-128 key size used throughout.
	KeyLength = 16
	// SystemTitleLength is the fixed peer identifier size.
	SystemTitleLength = 8
	// TagLength is the truncated GCM tag carried on the wire.
	TagLength = 12
	nonceLength = 12
)

// Cipher performs the AES-128-GCM operations of one association,
// bound to the global unicast encryption key and the authentication
// key.
type Cipher struct {
	aead    cipher.AEAD
	authKey []byte
}

// NewCipher builds a cipher from the two 16-byte keys.
func NewCipher(encryptionKey, authenticationKey []byte) (*Cipher, error) {
	if len(encryptionKey) != KeyLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "encryption key: %d bytes, need %d", len(encryptionKey), KeyLength)
	}
	if len(authenticationKey) != KeyLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "authentication key: %d bytes, need %d", len(authenticationKey), KeyLength)
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "aes", err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, TagLength)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "gcm", err)
	}
	return &Cipher{aead: aead, authKey: append([]byte(nil), authenticationKey...)}, nil
}

// Nonce builds the 12-byte GCM nonce: system title followed by the
// big-endian frame counter.
func Nonce(systemTitle []byte, counter uint32) ([]byte, error) {
	if len(systemTitle) != SystemTitleLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "system title: %d bytes, need %d", len(systemTitle), SystemTitleLength)
	}
	nonce := make([]byte, 0, nonceLength)
	nonce = append(nonce, systemTitle...)
	return binary.BigEndian.AppendUint32(nonce, counter), nil
}

// aad selects the additional data per the control byte: the control
// byte alone for encrypted frames, control byte plus authentication
// key for authentication-only frames.
func (c *Cipher) aad(control Control) []byte {
	if control.Authenticated() && !control.Encrypted() {
		out := make([]byte, 0, 1+len(c.authKey))
		out = append(out, byte(control))
		return append(out, c.authKey...)
	}
	return []byte{byte(control)}
}

// Encrypt seals plaintext under the nonce derived from systemTitle
// and counter. The result is ciphertext followed by the GCM tag.
func (c *Cipher) Encrypt(control Control, systemTitle []byte, counter uint32, plaintext []byte) ([]byte, error) {
	nonce, err := Nonce(systemTitle, counter)
	if err != nil {
		return nil, err
	}
	return c.aead.Seal(nil, nonce, plaintext, c.aad(control)), nil
}

// Decrypt opens ciphertext (which includes the trailing tag) and
// fails with a security error on any tag mismatch.
func (c *Cipher) Decrypt(control Control, systemTitle []byte, counter uint32, ciphertext []byte) ([]byte, error) {
	nonce, err := Nonce(systemTitle, counter)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, c.aad(control))
	if err != nil {
		return nil, dlms.NewError(dlms.KindSecurity, "authentication tag mismatch")
	}
	return plaintext, nil
}
