package acse

import (
	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/ber"
)

// ACSE application tags.
const (
	tagAARQ uint32 = 0
	tagAARE uint32 = 1
	tagRLRQ uint32 = 2
	tagRLRE uint32 = 3
)

// AssociationResult is the AARE result field.
type AssociationResult uint8

const (
	ResultAccepted          AssociationResult = 0
	ResultRejectedPermanent AssociationResult = 1
	ResultRejectedTransient AssociationResult = 2
)

// Service-user diagnostic values carried in result-source-diagnostic.
const (
	DiagnosticNull                       uint8 = 0
	DiagnosticNoReasonGiven              uint8 = 1
	DiagnosticContextNotSupported        uint8 = 2
	DiagnosticAuthenticationRequired     uint8 = 13
	DiagnosticAuthenticationFailure      uint8 = 14
	DiagnosticAuthenticationNotSupported uint8 = 15
)

// Release reasons for RLRQ/RLRE.
const (
	ReleaseNormal uint8 = 0
	ReleaseUrgent uint8 = 1
)

// AARQ is the association request.
type AARQ struct {
	ApplicationContext  []uint32
	CallingAPTitle      []byte // client system title
	ACSERequirements    bool   // authentication functional unit
	Mechanism           []uint32
	AuthenticationValue []byte // password or challenge, GraphicString choice
	UserInformation     []byte // xDLMS InitiateRequest, possibly glo-ciphered
}

// Encode serializes the AARQ with BER.
func (a AARQ) Encode() ([]byte, error) {
	oid, err := ber.EncodeOID(a.ApplicationContext)
	if err != nil {
		return nil, err
	}
	children := []ber.Node{
		ber.NewConstructed(ber.ClassContext, 1, ber.NewPrimitive(ber.ClassUniversal, ber.TagObjectIdentifier, oid)),
	}
	if len(a.CallingAPTitle) > 0 {
		children = append(children, ber.NewConstructed(ber.ClassContext, 6,
			ber.NewPrimitive(ber.ClassUniversal, ber.TagOctetString, a.CallingAPTitle)))
	}
	if a.ACSERequirements {
		// sender-acse-requirements: one-bit string, authentication.
		children = append(children, ber.NewPrimitive(ber.ClassContext, 10, []byte{0x07, 0x80}))
	}
	if len(a.Mechanism) > 0 {
		mechOID, err := ber.EncodeOID(a.Mechanism)
		if err != nil {
			return nil, err
		}
		children = append(children, ber.NewPrimitive(ber.ClassContext, 11, mechOID))
	}
	if a.AuthenticationValue != nil {
		children = append(children, ber.NewConstructed(ber.ClassContext, 12,
			ber.NewPrimitive(ber.ClassContext, 0, a.AuthenticationValue)))
	}
	if len(a.UserInformation) > 0 {
		children = append(children, ber.NewConstructed(ber.ClassContext, 30,
			ber.NewPrimitive(ber.ClassUniversal, ber.TagOctetString, a.UserInformation)))
	}
	return ber.NewConstructed(ber.ClassApplication, tagAARQ, children...).Encode()
}

// DecodeAARQ parses an AARQ APDU.
func DecodeAARQ(buf []byte) (AARQ, error) {
	node, _, err := ber.Decode(buf)
	if err != nil {
		return AARQ{}, err
	}
	if node.Tag.Class != ber.ClassApplication || node.Tag.Number != tagAARQ || !node.Tag.Constructed {
		return AARQ{}, dlms.NewError(dlms.KindAsn1Decoding, "aarq: wrong application tag")
	}
	var a AARQ
	contextNode, ok := node.Find(ber.ClassContext, 1)
	if !ok || len(contextNode.Children) != 1 {
		return AARQ{}, dlms.NewError(dlms.KindAsn1Decoding, "aarq: missing application-context-name")
	}
	a.ApplicationContext, err = ber.DecodeOID(contextNode.Children[0].Value)
	if err != nil {
		return AARQ{}, err
	}
	if title, ok := node.Find(ber.ClassContext, 6); ok && len(title.Children) == 1 {
		a.CallingAPTitle = title.Children[0].Value
	}
	if _, ok := node.Find(ber.ClassContext, 10); ok {
		a.ACSERequirements = true
	}
	if mech, ok := node.Find(ber.ClassContext, 11); ok {
		a.Mechanism, err = ber.DecodeOID(mech.Value)
		if err != nil {
			return AARQ{}, err
		}
	}
	if auth, ok := node.Find(ber.ClassContext, 12); ok && len(auth.Children) == 1 {
		a.AuthenticationValue = auth.Children[0].Value
	}
	if info, ok := node.Find(ber.ClassContext, 30); ok && len(info.Children) == 1 {
		a.UserInformation = info.Children[0].Value
	}
	return a, nil
}

// AARE is the association response.
type AARE struct {
	ApplicationContext  []uint32
	Result              AssociationResult
	Diagnostic          uint8
	RespondingAPTitle   []byte // server system title
	Mechanism           []uint32
	AuthenticationValue []byte // server challenge for HLS
	UserInformation     []byte // xDLMS InitiateResponse, possibly glo-ciphered
}

// Encode serializes the AARE with BER.
func (a AARE) Encode() ([]byte, error) {
	oid, err := ber.EncodeOID(a.ApplicationContext)
	if err != nil {
		return nil, err
	}
	children := []ber.Node{
		ber.NewConstructed(ber.ClassContext, 1, ber.NewPrimitive(ber.ClassUniversal, ber.TagObjectIdentifier, oid)),
		ber.NewConstructed(ber.ClassContext, 2, ber.NewPrimitive(ber.ClassUniversal, ber.TagInteger, []byte{byte(a.Result)})),
		ber.NewConstructed(ber.ClassContext, 3,
			ber.NewConstructed(ber.ClassContext, 1, ber.NewPrimitive(ber.ClassUniversal, ber.TagInteger, []byte{a.Diagnostic}))),
	}
	if len(a.RespondingAPTitle) > 0 {
		children = append(children, ber.NewConstructed(ber.ClassContext, 4,
			ber.NewPrimitive(ber.ClassUniversal, ber.TagOctetString, a.RespondingAPTitle)))
	}
	if len(a.Mechanism) > 0 {
		mechOID, err := ber.EncodeOID(a.Mechanism)
		if err != nil {
			return nil, err
		}
		children = append(children, ber.NewPrimitive(ber.ClassContext, 9, mechOID))
	}
	if a.AuthenticationValue != nil {
		children = append(children, ber.NewConstructed(ber.ClassContext, 10,
			ber.NewPrimitive(ber.ClassContext, 0, a.AuthenticationValue)))
	}
	if len(a.UserInformation) > 0 {
		children = append(children, ber.NewConstructed(ber.ClassContext, 30,
			ber.NewPrimitive(ber.ClassUniversal, ber.TagOctetString, a.UserInformation)))
	}
	return ber.NewConstructed(ber.ClassApplication, tagAARE, children...).Encode()
}

// DecodeAARE parses an AARE APDU.
func DecodeAARE(buf []byte) (AARE, error) {
	node, _, err := ber.Decode(buf)
	if err != nil {
		return AARE{}, err
	}
	if node.Tag.Class != ber.ClassApplication || node.Tag.Number != tagAARE || !node.Tag.Constructed {
		return AARE{}, dlms.NewError(dlms.KindAsn1Decoding, "aare: wrong application tag")
	}
	var a AARE
	contextNode, ok := node.Find(ber.ClassContext, 1)
	if !ok || len(contextNode.Children) != 1 {
		return AARE{}, dlms.NewError(dlms.KindAsn1Decoding, "aare: missing application-context-name")
	}
	a.ApplicationContext, err = ber.DecodeOID(contextNode.Children[0].Value)
	if err != nil {
		return AARE{}, err
	}
	resultNode, ok := node.Find(ber.ClassContext, 2)
	if !ok || len(resultNode.Children) != 1 || len(resultNode.Children[0].Value) != 1 {
		return AARE{}, dlms.NewError(dlms.KindAsn1Decoding, "aare: missing result")
	}
	a.Result = AssociationResult(resultNode.Children[0].Value[0])
	if diag, ok := node.Find(ber.ClassContext, 3); ok && len(diag.Children) == 1 && len(diag.Children[0].Children) == 1 {
		if v := diag.Children[0].Children[0].Value; len(v) == 1 {
			a.Diagnostic = v[0]
		}
	}
	if title, ok := node.Find(ber.ClassContext, 4); ok && len(title.Children) == 1 {
		a.RespondingAPTitle = title.Children[0].Value
	}
	if mech, ok := node.Find(ber.ClassContext, 9); ok {
		a.Mechanism, err = ber.DecodeOID(mech.Value)
		if err != nil {
			return AARE{}, err
		}
	}
	if auth, ok := node.Find(ber.ClassContext, 10); ok && len(auth.Children) == 1 {
		a.AuthenticationValue = auth.Children[0].Value
	}
	if info, ok := node.Find(ber.ClassContext, 30); ok && len(info.Children) == 1 {
		a.UserInformation = info.Children[0].Value
	}
	return a, nil
}

// RLRQ is the release request.
type RLRQ struct {
	Reason          *uint8
	UserInformation []byte
}

// Encode serializes the RLRQ.
func (r RLRQ) Encode() ([]byte, error) {
	var children []ber.Node
	if r.Reason != nil {
		children = append(children, ber.NewPrimitive(ber.ClassContext, 0, []byte{*r.Reason}))
	}
	if len(r.UserInformation) > 0 {
		children = append(children, ber.NewConstructed(ber.ClassContext, 30,
			ber.NewPrimitive(ber.ClassUniversal, ber.TagOctetString, r.UserInformation)))
	}
	return ber.NewConstructed(ber.ClassApplication, tagRLRQ, children...).Encode()
}

// DecodeRLRQ parses an RLRQ APDU.
func DecodeRLRQ(buf []byte) (RLRQ, error) {
	node, _, err := ber.Decode(buf)
	if err != nil {
		return RLRQ{}, err
	}
	if node.Tag.Class != ber.ClassApplication || node.Tag.Number != tagRLRQ {
		return RLRQ{}, dlms.NewError(dlms.KindAsn1Decoding, "rlrq: wrong application tag")
	}
	var r RLRQ
	if reason, ok := node.Find(ber.ClassContext, 0); ok && len(reason.Value) == 1 {
		v := reason.Value[0]
		r.Reason = &v
	}
	if info, ok := node.Find(ber.ClassContext, 30); ok && len(info.Children) == 1 {
		r.UserInformation = info.Children[0].Value
	}
	return r, nil
}

// RLRE is the release response.
type RLRE struct {
	Reason          *uint8
	UserInformation []byte
}

// Encode serializes the RLRE.
func (r RLRE) Encode() ([]byte, error) {
	var children []ber.Node
	if r.Reason != nil {
		children = append(children, ber.NewPrimitive(ber.ClassContext, 0, []byte{*r.Reason}))
	}
	if len(r.UserInformation) > 0 {
		children = append(children, ber.NewConstructed(ber.ClassContext, 30,
			ber.NewPrimitive(ber.ClassUniversal, ber.TagOctetString, r.UserInformation)))
	}
	return ber.NewConstructed(ber.ClassApplication, tagRLRE, children...).Encode()
}

// DecodeRLRE parses an RLRE APDU.
func DecodeRLRE(buf []byte) (RLRE, error) {
	node, _, err := ber.Decode(buf)
	if err != nil {
		return RLRE{}, err
	}
	if node.Tag.Class != ber.ClassApplication || node.Tag.Number != tagRLRE {
		return RLRE{}, dlms.NewError(dlms.KindAsn1Decoding, "rlre: wrong application tag")
	}
	var r RLRE
	if reason, ok := node.Find(ber.ClassContext, 0); ok && len(reason.Value) == 1 {
		v := reason.Value[0]
		r.Reason = &v
	}
	if info, ok := node.Find(ber.ClassContext, 30); ok && len(info.Children) == 1 {
		r.UserInformation = info.Children[0].Value
	}
	return r, nil
}
