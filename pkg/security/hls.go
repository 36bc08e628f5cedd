package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
)

// HLS5 security control: authentication only, suite 0.
const hlsControl = Control(0x10)

// GenerateChallenge returns a random challenge for the HLS
// handshake. DLMS allows 8 to 64 bytes; 16 is what meters commonly
// send.
func GenerateChallenge(size int) ([]byte, error) {
	if size < 8 || size > 64 {
		return nil, dlms.Errorf(dlms.KindSecurity, "challenge size %d outside 8..64", size)
	}
	challenge := make([]byte, size)
	if _, err := rand.Read(challenge); err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "challenge", err)
	}
	return challenge, nil
}

// gmac computes the 12-byte GMAC of data under key with the given
// nonce. GMAC is GCM with everything carried as additional data.
func gmac(key, nonce, data []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "gmac key: %d bytes, need %d", len(key), KeyLength)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "aes", err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, TagLength)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindSecurity, "gcm", err)
	}
	return aead.Seal(nil, nonce, nil, data), nil
}

// HLS5Response proves possession of the authentication key: a GMAC
// over the received challenge, bound to the responder system title
// and frame counter. The wire form is control byte, counter, tag.
func HLS5Response(authenticationKey, systemTitle []byte, counter uint32, challenge []byte) ([]byte, error) {
	nonce, err := Nonce(systemTitle, counter)
	if err != nil {
		return nil, err
	}
	aad := make([]byte, 0, 1+len(systemTitle)+4+len(challenge))
	aad = append(aad, byte(hlsControl))
	aad = append(aad, systemTitle...)
	aad = binary.BigEndian.AppendUint32(aad, counter)
	aad = append(aad, challenge...)
	tag, err := gmac(authenticationKey, nonce, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 5+len(tag))
	out = append(out, byte(hlsControl))
	out = binary.BigEndian.AppendUint32(out, counter)
	return append(out, tag...), nil
}

// VerifyHLS5Response checks the peer's reply-to-HLS-authentication
// value against the challenge we sent. systemTitle is the peer's.
func VerifyHLS5Response(authenticationKey, systemTitle []byte, challenge, response []byte) error {
	if len(response) != 5+TagLength {
		return dlms.Errorf(dlms.KindSecurity, "hls response: %d bytes", len(response))
	}
	if Control(response[0]) != hlsControl {
		return dlms.NewError(dlms.KindSecurity, "hls response: bad security control")
	}
	counter := binary.BigEndian.Uint32(response[1:5])
	expected, err := HLS5Response(authenticationKey, systemTitle, counter, challenge)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(expected, response) != 1 {
		return dlms.NewError(dlms.KindSecurity, "hls response: GMAC mismatch")
	}
	return nil
}
