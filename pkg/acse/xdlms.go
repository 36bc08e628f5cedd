package acse

import (
	"encoding/binary"

	dlms "github.com/openmetering/godlms"
)

// xDLMS APDU tags carried in the ACSE user-information field.
const (
	TagInitiateRequest  byte = 0x01
	TagInitiateResponse byte = 0x08
	// Ciphered forms wrapping the plain PDUs.
	TagGloInitiateRequest  byte = 0x21
	TagGloInitiateResponse byte = 0x28
)

// conformance block header inside the initiate PDUs: APPLICATION 31,
// 4 content bytes (unused-bit count plus the 3 block bytes).
var conformanceHeader = []byte{0x5F, 0x1F, 0x04, 0x00}

// InitiateRequest proposes the application association parameters.
type InitiateRequest struct {
	DedicatedKey        []byte
	ResponseAllowed     bool
	ProposedVersion     uint8
	ProposedConformance Conformance
	ClientMaxPDUSize    uint16
}

// NewInitiateRequest fills the fixed DLMS version 6 proposal.
func NewInitiateRequest(conformance Conformance, maxPDUSize uint16) InitiateRequest {
	return InitiateRequest{
		ResponseAllowed:     true,
		ProposedVersion:     dlms.DlmsVersion,
		ProposedConformance: conformance,
		ClientMaxPDUSize:    maxPDUSize,
	}
}

// Encode serializes the A-XDR form of the request.
func (r InitiateRequest) Encode() []byte {
	out := []byte{TagInitiateRequest}
	if len(r.DedicatedKey) > 0 {
		out = append(out, 0x01, byte(len(r.DedicatedKey)))
		out = append(out, r.DedicatedKey...)
	} else {
		out = append(out, 0x00)
	}
	// response-allowed carries its default (true) implicitly.
	if r.ResponseAllowed {
		out = append(out, 0x00)
	} else {
		out = append(out, 0x01, 0x00)
	}
	// proposed-quality-of-service: absent
	out = append(out, 0x00)
	out = append(out, r.ProposedVersion)
	out = append(out, conformanceHeader...)
	block := r.ProposedConformance.Bytes()
	out = append(out, block[:]...)
	return binary.BigEndian.AppendUint16(out, r.ClientMaxPDUSize)
}

// DecodeInitiateRequest parses an InitiateRequest APDU.
func DecodeInitiateRequest(buf []byte) (InitiateRequest, error) {
	var r InitiateRequest
	if len(buf) < 2 || buf[0] != TagInitiateRequest {
		return r, dlms.NewError(dlms.KindInvalidData, "initiate-request: bad tag")
	}
	pos := 1
	// dedicated-key OPTIONAL
	used, err := optionalByte(buf, &pos)
	if err != nil {
		return r, err
	}
	if used {
		if pos >= len(buf) {
			return r, truncatedInitiate()
		}
		keyLen := int(buf[pos])
		pos++
		if pos+keyLen > len(buf) {
			return r, truncatedInitiate()
		}
		r.DedicatedKey = append([]byte(nil), buf[pos:pos+keyLen]...)
		pos += keyLen
	}
	// response-allowed DEFAULT TRUE
	used, err = optionalByte(buf, &pos)
	if err != nil {
		return r, err
	}
	r.ResponseAllowed = true
	if used {
		if pos >= len(buf) {
			return r, truncatedInitiate()
		}
		r.ResponseAllowed = buf[pos] != 0
		pos++
	}
	// proposed-quality-of-service OPTIONAL
	used, err = optionalByte(buf, &pos)
	if err != nil {
		return r, err
	}
	if used {
		pos++ // quality of service is carried but unused
	}
	if pos+1+len(conformanceHeader)+3+2 > len(buf) {
		return r, truncatedInitiate()
	}
	r.ProposedVersion = buf[pos]
	pos++
	for i, b := range conformanceHeader {
		if buf[pos+i] != b {
			return r, dlms.NewError(dlms.KindInvalidData, "initiate-request: bad conformance header")
		}
	}
	pos += len(conformanceHeader)
	r.ProposedConformance, _ = ConformanceFromBytes(buf[pos : pos+3])
	pos += 3
	r.ClientMaxPDUSize = binary.BigEndian.Uint16(buf[pos:])
	return r, nil
}

// VAANameLN is the virtual attribute association name returned for
// logical name referencing.
const VAANameLN uint16 = 0x0007

// InitiateResponse carries the negotiated association parameters.
type InitiateResponse struct {
	NegotiatedVersion     uint8
	NegotiatedConformance Conformance
	ServerMaxPDUSize      uint16
	VAAName               uint16
}

// Encode serializes the A-XDR form of the response.
func (r InitiateResponse) Encode() []byte {
	out := []byte{TagInitiateResponse}
	// negotiated-quality-of-service: absent
	out = append(out, 0x00)
	out = append(out, r.NegotiatedVersion)
	out = append(out, conformanceHeader...)
	block := r.NegotiatedConformance.Bytes()
	out = append(out, block[:]...)
	out = binary.BigEndian.AppendUint16(out, r.ServerMaxPDUSize)
	return binary.BigEndian.AppendUint16(out, r.VAAName)
}

// DecodeInitiateResponse parses an InitiateResponse APDU.
func DecodeInitiateResponse(buf []byte) (InitiateResponse, error) {
	var r InitiateResponse
	if len(buf) < 2 || buf[0] != TagInitiateResponse {
		return r, dlms.NewError(dlms.KindInvalidData, "initiate-response: bad tag")
	}
	pos := 1
	used, err := optionalByte(buf, &pos)
	if err != nil {
		return r, err
	}
	if used {
		pos++
	}
	if pos+1+len(conformanceHeader)+3+4 > len(buf) {
		return r, truncatedInitiate()
	}
	r.NegotiatedVersion = buf[pos]
	pos++
	for i, b := range conformanceHeader {
		if buf[pos+i] != b {
			return r, dlms.NewError(dlms.KindInvalidData, "initiate-response: bad conformance header")
		}
	}
	pos += len(conformanceHeader)
	r.NegotiatedConformance, _ = ConformanceFromBytes(buf[pos : pos+3])
	pos += 3
	r.ServerMaxPDUSize = binary.BigEndian.Uint16(buf[pos:])
	pos += 2
	r.VAAName = binary.BigEndian.Uint16(buf[pos:])
	return r, nil
}

func optionalByte(buf []byte, pos *int) (bool, error) {
	if *pos >= len(buf) {
		return false, truncatedInitiate()
	}
	used := buf[*pos] != 0
	*pos++
	return used, nil
}

func truncatedInitiate() error {
	return dlms.NewError(dlms.KindInvalidData, "initiate pdu: truncated")
}
