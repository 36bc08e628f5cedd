package security

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// Ciphered APDU tags (global keys).
const (
	TagGloGetRequest     byte = 0xC8
	TagGloSetRequest     byte = 0xC9
	TagGloActionRequest  byte = 0xCB
	TagGloGetResponse    byte = 0xCC
	TagGloSetResponse    byte = 0xCD
	TagGloActionResponse byte = 0xCF
	// General ciphering carries any APDU.
	TagGeneralGloCiphering byte = 0xDB
)

// Envelope binds a cipher to the sender identity and counters of one
// direction of an association.
type Envelope struct {
	cipher      *Cipher
	systemTitle []byte
	counter     *FrameCounter
	guard       ReplayGuard
}

// NewEnvelope builds the sending/receiving envelope for one peer.
// systemTitle is the local title for Protect and the peer title for
// Unprotect.
func NewEnvelope(c *Cipher, systemTitle []byte, counter *FrameCounter) (*Envelope, error) {
	if len(systemTitle) != SystemTitleLength {
		return nil, dlms.Errorf(dlms.KindSecurity, "system title: %d bytes, need %d", len(systemTitle), SystemTitleLength)
	}
	return &Envelope{
		cipher:      c,
		systemTitle: append([]byte(nil), systemTitle...),
		counter:     counter,
	}, nil
}

// Protect wraps apdu into a ciphered APDU: tag, length, security
// control, frame counter, ciphertext and tag. The counter advances
// atomically before use.
func (e *Envelope) Protect(tag byte, control Control, apdu []byte) ([]byte, error) {
	counter, err := e.counter.Next()
	if err != nil {
		return nil, err
	}
	ciphertext, err := e.cipher.Encrypt(control, e.systemTitle, counter, apdu)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, 5+len(ciphertext))
	body = append(body, byte(control))
	body = binary.BigEndian.AppendUint32(body, counter)
	body = append(body, ciphertext...)

	out := []byte{tag}
	out = axdr.EncodeLength(out, len(body))
	return append(out, body...), nil
}

// Unprotect opens a ciphered APDU produced by the peer, enforcing
// the replay discipline on its frame counter.
func (e *Envelope) Unprotect(buf []byte) (tag byte, apdu []byte, err error) {
	if len(buf) < 2 {
		return 0, nil, dlms.NewError(dlms.KindSecurity, "ciphered apdu: truncated")
	}
	tag = buf[0]
	length, n, err := axdr.DecodeLength(buf[1:])
	if err != nil {
		return 0, nil, err
	}
	body := buf[1+n:]
	if len(body) != length {
		return 0, nil, dlms.Errorf(dlms.KindSecurity, "ciphered apdu: length %d, body %d", length, len(body))
	}
	if len(body) < 5+TagLength {
		return 0, nil, dlms.NewError(dlms.KindSecurity, "ciphered apdu: body too short")
	}
	control := Control(body[0])
	counter := binary.BigEndian.Uint32(body[1:5])
	if err := e.guard.Accept(counter); err != nil {
		return 0, nil, err
	}
	apdu, err = e.cipher.Decrypt(control, e.systemTitle, counter, body[5:])
	if err != nil {
		return 0, nil, err
	}
	return tag, apdu, nil
}

// Counter draws the next frame counter for operations that bind a
// counter outside Protect, such as the HLS handshake.
func (e *Envelope) Counter() (uint32, error) {
	return e.counter.Next()
}

// ResetReplay clears the receive-side counter state, used when a new
// association begins.
func (e *Envelope) ResetReplay() {
	e.guard.Reset()
}
