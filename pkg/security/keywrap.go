package security

import (
	"crypto/aes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// KeyId names the keys transportable under the master key.
type KeyId uint8

const (
	KeyGlobalUnicast   KeyId = 0
	KeyGlobalBroadcast KeyId = 1
	KeyAuthentication  KeyId = 2
)

// GenerateKey returns a fresh random AES-128 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "key generation", err)
	}
	return key, nil
}

// KeyTransferData builds one element of the key-transfer ACTION
// parameter: the key id paired with the key wrapped under the KEK.
func KeyTransferData(id KeyId, kek, key []byte) (axdr.Data, error) {
	wrapped, err := WrapKey(kek, key)
	if err != nil {
		return axdr.Data{}, err
	}
	return axdr.NewStructure(axdr.NewEnum(uint8(id)), axdr.NewOctetString(wrapped)), nil
}

// rfc3394IV is the fixed initial value of the key wrap algorithm.
var rfc3394IV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// WrapKey wraps key under kek with RFC 3394. The key must be a whole
// number of 64-bit blocks, at least two.
func WrapKey(kek, key []byte) ([]byte, error) {
	if len(kek) != KeyLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "kek: %d bytes, need %d", len(kek), KeyLength)
	}
	if len(key)%8 != 0 || len(key) < 16 {
		return nil, dlms.Errorf(dlms.KindSecurity, "wrap: key of %d bytes", len(key))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "aes", err)
	}

	n := len(key) / 8
	a := rfc3394IV
	r := make([]byte, len(key))
	copy(r, key)

	var buf [16]byte
	for j := 0; j < 6; j++ {
		for i := 0; i < n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i*8:(i+1)*8])
			block.Encrypt(buf[:], buf[:])
			t := uint64(n*j + i + 1)
			copy(a[:], buf[:8])
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(a[:])^t)
			copy(a[:], buf[:8])
			copy(r[i*8:(i+1)*8], buf[8:])
		}
	}
	out := make([]byte, 0, 8+len(key))
	out = append(out, a[:]...)
	return append(out, r...), nil
}

// UnwrapKey reverses WrapKey, validating the integrity value. An
// unwrap that does not yield a 16-byte key fails: every key this
// stack transports is AES-128.
func UnwrapKey(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != KeyLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "kek: %d bytes, need %d", len(kek), KeyLength)
	}
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, dlms.Errorf(dlms.KindSecurity, "unwrap: wrapped key of %d bytes", len(wrapped))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "aes", err)
	}

	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])
	r := make([]byte, n*8)
	copy(r, wrapped[8:])

	var buf [16]byte
	for j := 5; j >= 0; j-- {
		for i := n - 1; i >= 0; i-- {
			t := uint64(n*j + i + 1)
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(a[:])^t)
			copy(buf[8:], r[i*8:(i+1)*8])
			block.Decrypt(buf[:], buf[:])
			copy(a[:], buf[:8])
			copy(r[i*8:(i+1)*8], buf[8:])
		}
	}
	if subtle.ConstantTimeCompare(a[:], rfc3394IV[:]) != 1 {
		return nil, dlms.NewError(dlms.KindSecurity, "unwrap: integrity check failed")
	}
	if len(r) != KeyLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "unwrap: %d byte key", len(r))
	}
	return r, nil
}
