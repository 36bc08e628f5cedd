package security

import (
	"bytes"
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	zeroKey   = make([]byte, 16)
	testTitle = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
)

func TestControlByte(t *testing.T) {
	c := NewControl(0, true, true, false)
	assert.True(t, c.Authenticated())
	assert.True(t, c.Encrypted())
	assert.False(t, c.KeySet())
	assert.EqualValues(t, 0, c.Suite())
	assert.Equal(t, Control(0x30), c)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher(zeroKey, zeroKey)
	require.Nil(t, err)
	control := NewControl(0, true, true, false)
	plaintext := []byte{0x01, 0x02, 0x03}

	ciphertext, err := c.Encrypt(control, testTitle, 1, plaintext)
	require.Nil(t, err)
	assert.NotEqual(t, plaintext, ciphertext[:3])

	decrypted, err := c.Decrypt(control, testTitle, 1, ciphertext)
	require.Nil(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	c, err := NewCipher(zeroKey, zeroKey)
	require.Nil(t, err)
	control := NewControl(0, true, true, false)
	ciphertext, err := c.Encrypt(control, testTitle, 7, []byte{1, 2, 3})
	require.Nil(t, err)
	ciphertext[0] ^= 0x01
	_, err = c.Decrypt(control, testTitle, 7, ciphertext)
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))
}

func TestEnvelopeReplayRejected(t *testing.T) {
	c, err := NewCipher(zeroKey, zeroKey)
	require.Nil(t, err)
	sender, err := NewEnvelope(c, testTitle, NewFrameCounter(1))
	require.Nil(t, err)
	receiver, err := NewEnvelope(c, testTitle, NewFrameCounter(1))
	require.Nil(t, err)

	control := NewControl(0, true, true, false)
	protected, err := sender.Protect(TagGloGetRequest, control, []byte{0x01, 0x02, 0x03})
	require.Nil(t, err)

	tag, apdu, err := receiver.Unprotect(protected)
	require.Nil(t, err)
	assert.Equal(t, TagGloGetRequest, tag)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, apdu)

	// The same envelope replayed must be refused.
	_, _, err = receiver.Unprotect(protected)
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))
}

func TestFrameCounterMonotonic(t *testing.T) {
	counter := NewFrameCounter(1)
	a, err := counter.Next()
	require.Nil(t, err)
	b, err := counter.Next()
	require.Nil(t, err)
	assert.Less(t, a, b)
}

func TestFrameCounterExhaustion(t *testing.T) {
	counter := NewFrameCounter(0xFFFFFFFE)
	v, err := counter.Next()
	require.Nil(t, err)
	assert.EqualValues(t, 0xFFFFFFFE, v)
	v, err = counter.Next()
	require.Nil(t, err)
	assert.EqualValues(t, 0xFFFFFFFF, v)
	// Wrapping past the top is refused.
	_, err = counter.Next()
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))
}

func TestKeyWrapRoundTrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 16)
	key := bytes.Repeat([]byte{0x22}, 16)
	wrapped, err := WrapKey(kek, key)
	require.Nil(t, err)
	assert.Len(t, wrapped, 24)
	unwrapped, err := UnwrapKey(kek, wrapped)
	require.Nil(t, err)
	assert.Equal(t, key, unwrapped)
}

func TestKeyWrapVector(t *testing.T) {
	// RFC 3394 section 4.1 test vector.
	kek := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
	key := []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	expected := []byte{
		0x1F, 0xA6, 0x8B, 0x0A, 0x81, 0x12, 0xB4, 0x47,
		0xAE, 0xF3, 0x4B, 0xD8, 0xFB, 0x5A, 0x7B, 0x82,
		0x9D, 0x3E, 0x86, 0x23, 0x71, 0xD2, 0xCF, 0xE5,
	}
	wrapped, err := WrapKey(kek, key)
	require.Nil(t, err)
	assert.Equal(t, expected, wrapped)
}

func TestUnwrapTamperedFails(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 16)
	wrapped, err := WrapKey(kek, bytes.Repeat([]byte{0x22}, 16))
	require.Nil(t, err)
	wrapped[3] ^= 0x80
	_, err = UnwrapKey(kek, wrapped)
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))
}

func TestUnwrapWrongSizeFails(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 16)
	// A 24-byte key unwraps fine under RFC 3394 but is not a valid
	// AES-128 key for this stack.
	wrapped, err := WrapKey(kek, bytes.Repeat([]byte{0x22}, 24))
	require.Nil(t, err)
	_, err = UnwrapKey(kek, wrapped)
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))
}

func TestKeyTransferData(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 16)
	key := bytes.Repeat([]byte{0x22}, 16)
	data, err := KeyTransferData(KeyGlobalUnicast, kek, key)
	require.Nil(t, err)
	members := data.Value.([]axdr.Data)
	require.Len(t, members, 2)
	assert.EqualValues(t, uint8(KeyGlobalUnicast), members[0].Value)
	wrapped := members[1].Value.([]byte)
	unwrapped, err := UnwrapKey(kek, wrapped)
	require.Nil(t, err)
	assert.Equal(t, key, unwrapped)
}

func TestHLS5ChallengeResponse(t *testing.T) {
	challenge, err := GenerateChallenge(16)
	require.Nil(t, err)
	response, err := HLS5Response(zeroKey, testTitle, 1, challenge)
	require.Nil(t, err)
	assert.Nil(t, VerifyHLS5Response(zeroKey, testTitle, challenge, response))

	// A different key must not verify.
	otherKey := bytes.Repeat([]byte{0x01}, 16)
	err = VerifyHLS5Response(otherKey, testTitle, challenge, response)
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))

	// Nor a different challenge.
	err = VerifyHLS5Response(zeroKey, testTitle, append([]byte{0xFF}, challenge[1:]...), response)
	assert.True(t, dlms.IsKind(err, dlms.KindSecurity))
}

func TestEncryptDecryptProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "key")
		authKey := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "authKey")
		title := rapid.SliceOfN(rapid.Byte(), 8, 8).Draw(t, "title")
		counter := rapid.Uint32().Draw(t, "counter")
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 500).Draw(t, "plaintext")
		authenticated := rapid.Bool().Draw(t, "authenticated")

		c, err := NewCipher(key, authKey)
		require.Nil(t, err)
		control := NewControl(0, authenticated, true, false)
		ciphertext, err := c.Encrypt(control, title, counter, plaintext)
		require.Nil(t, err)
		decrypted, err := c.Decrypt(control, title, counter, ciphertext)
		require.Nil(t, err)
		if len(plaintext) == 0 {
			assert.Empty(t, decrypted)
		} else {
			assert.Equal(t, plaintext, decrypted)
		}
	})
}
