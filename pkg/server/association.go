package server

import (
	"bytes"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/acse"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
	"github.com/openmetering/godlms/pkg/security"
	log "github.com/sirupsen/logrus"
)

// Config carries the server identity and security material.
type Config struct {
	SystemTitle       []byte
	Password          []byte
	EncryptionKey     []byte
	AuthenticationKey []byte
	MasterKey         []byte
	Conformance       acse.Conformance
	MaxPDUSize        uint16
	ChallengeSize     int
}

func (c *Config) fillDefaults() {
	if c.Conformance == 0 {
		c.Conformance = acse.DefaultLNConformance
	}
	if c.MaxPDUSize == 0 {
		c.MaxPDUSize = 1024
	}
	if c.ChallengeSize == 0 {
		c.ChallengeSize = 16
	}
}

// association is the per-connection server state: the engine plus
// the ACSE and security context.
type association struct {
	cfg    Config
	engine *Engine

	associated    bool
	ciphered      bool
	authenticated bool
	hlsPending    bool

	clientTitle     []byte
	clientChallenge []byte
	serverChallenge []byte

	cipher  *security.Cipher
	sendEnv *security.Envelope
	recvEnv *security.Envelope
}

func newAssociation(cfg Config, registry *Registry) *association {
	cfg.fillDefaults()
	return &association{
		cfg:    cfg,
		engine: NewEngine(registry, int(cfg.MaxPDUSize)),
	}
}

// handle maps one incoming APDU to an optional response. release
// reports that the peer asked for the association to end.
func (a *association) handle(raw []byte) (response []byte, release bool, err error) {
	if len(raw) == 0 {
		return nil, false, dlms.NewError(dlms.KindProtocol, "empty apdu")
	}
	switch raw[0] {
	case 0x60: // AARQ
		response, err := a.handleAARQ(raw)
		return response, false, err
	case 0x62: // RLRQ
		if _, err := acse.DecodeRLRQ(raw); err != nil {
			return nil, false, err
		}
		reason := acse.ReleaseNormal
		rlre := acse.RLRE{Reason: &reason}
		encoded, err := rlre.Encode()
		a.associated = false
		return encoded, true, err
	}

	if !a.associated {
		return nil, false, dlms.NewError(dlms.KindProtocol, "request before association")
	}

	wasCiphered := false
	inner := raw
	if a.ciphered && isGloRequestTag(raw[0]) {
		_, plain, err := a.recvEnv.Unprotect(raw)
		if err != nil {
			// Replay and tag failures kill the association.
			return nil, true, err
		}
		inner = plain
		wasCiphered = true
	}

	request, err := pdu.Decode(inner)
	if err != nil {
		return nil, false, err
	}

	if a.hlsPending {
		responsePDU, authErr := a.handleHLSPass(request)
		if authErr != nil {
			return nil, true, authErr
		}
		if responsePDU != nil {
			return a.encodeResponse(responsePDU, wasCiphered)
		}
		// Any other request before the HLS pass completes is refused.
		return nil, true, dlms.NewError(dlms.KindSecurity, "request before HLS authentication")
	}

	responsePDU, err := a.engine.Handle(request)
	if err != nil {
		return nil, false, err
	}
	return a.encodeResponse(responsePDU, wasCiphered)
}

func (a *association) encodeResponse(responsePDU pdu.PDU, ciphered bool) ([]byte, bool, error) {
	encoded, err := pdu.Encode(responsePDU)
	if err != nil {
		return nil, false, err
	}
	if ciphered {
		gloTag, err := gloResponseTag(encoded[0])
		if err != nil {
			return nil, false, err
		}
		encoded, err = a.sendEnv.Protect(gloTag, security.NewControl(0, true, true, false), encoded)
		if err != nil {
			return nil, false, err
		}
	}
	return encoded, false, nil
}

func (a *association) handleAARQ(raw []byte) ([]byte, error) {
	aarq, err := acse.DecodeAARQ(raw)
	if err != nil {
		return nil, err
	}
	ciphered, known := acse.IsCipheredContext(aarq.ApplicationContext)
	if !known || !acse.IsLogicalNameContext(aarq.ApplicationContext) {
		return a.reject(aarq, acse.ResultRejectedPermanent, acse.DiagnosticContextNotSupported)
	}
	a.ciphered = ciphered
	a.clientTitle = aarq.CallingAPTitle

	if ciphered || oidEqual(aarq.Mechanism, acse.MechanismHighGMAC) {
		if len(a.clientTitle) != security.SystemTitleLength {
			return a.reject(aarq, acse.ResultRejectedPermanent, acse.DiagnosticNoReasonGiven)
		}
		cipher, err := security.NewCipher(a.cfg.EncryptionKey, a.cfg.AuthenticationKey)
		if err != nil {
			return nil, err
		}
		a.cipher = cipher
		a.sendEnv, err = security.NewEnvelope(cipher, a.cfg.SystemTitle, security.NewFrameCounter(1))
		if err != nil {
			return nil, err
		}
		a.recvEnv, err = security.NewEnvelope(cipher, a.clientTitle, security.NewFrameCounter(1))
		if err != nil {
			return nil, err
		}
	}

	userInfo := aarq.UserInformation
	if ciphered {
		tag, plain, err := a.recvEnv.Unprotect(userInfo)
		if err != nil {
			return nil, err
		}
		if tag != acse.TagGloInitiateRequest {
			return nil, dlms.Errorf(dlms.KindProtocol, "expected glo-initiate-request, got 0x%02X", tag)
		}
		userInfo = plain
	}
	initiate, err := acse.DecodeInitiateRequest(userInfo)
	if err != nil {
		return nil, err
	}
	if initiate.ProposedVersion != dlms.DlmsVersion {
		return a.reject(aarq, acse.ResultRejectedPermanent, acse.DiagnosticNoReasonGiven)
	}

	switch {
	case oidEqual(aarq.Mechanism, acse.MechanismLow):
		if !bytes.Equal(aarq.AuthenticationValue, a.cfg.Password) {
			log.Warn("low level authentication failed")
			return a.reject(aarq, acse.ResultRejectedPermanent, acse.DiagnosticAuthenticationFailure)
		}
		a.authenticated = true
	case oidEqual(aarq.Mechanism, acse.MechanismHighGMAC):
		a.clientChallenge = aarq.AuthenticationValue
		a.serverChallenge, err = security.GenerateChallenge(a.cfg.ChallengeSize)
		if err != nil {
			return nil, err
		}
		a.hlsPending = true
	case len(aarq.Mechanism) == 0:
		a.authenticated = true
	default:
		return a.reject(aarq, acse.ResultRejectedPermanent, acse.DiagnosticAuthenticationNotSupported)
	}

	negotiated := a.cfg.Conformance.And(initiate.ProposedConformance)
	maxPDU := a.cfg.MaxPDUSize
	if initiate.ClientMaxPDUSize != 0 && initiate.ClientMaxPDUSize < maxPDU {
		maxPDU = initiate.ClientMaxPDUSize
	}
	response := acse.InitiateResponse{
		NegotiatedVersion:     dlms.DlmsVersion,
		NegotiatedConformance: negotiated,
		ServerMaxPDUSize:      maxPDU,
		VAAName:               acse.VAANameLN,
	}
	responseInfo := response.Encode()
	if ciphered {
		responseInfo, err = a.sendEnv.Protect(acse.TagGloInitiateResponse, security.NewControl(0, true, true, false), responseInfo)
		if err != nil {
			return nil, err
		}
	}

	aare := acse.AARE{
		ApplicationContext: aarq.ApplicationContext,
		Result:             acse.ResultAccepted,
		Diagnostic:         acse.DiagnosticNull,
		UserInformation:    responseInfo,
	}
	if a.hlsPending || ciphered {
		aare.RespondingAPTitle = a.cfg.SystemTitle
	}
	if a.hlsPending {
		aare.Mechanism = acse.MechanismHighGMAC
		aare.AuthenticationValue = a.serverChallenge
	}
	a.associated = true
	log.WithFields(log.Fields{"ciphered": ciphered, "hls": a.hlsPending}).Info("association accepted")
	return aare.Encode()
}

func (a *association) reject(aarq acse.AARQ, result acse.AssociationResult, diagnostic uint8) ([]byte, error) {
	aare := acse.AARE{
		ApplicationContext: aarq.ApplicationContext,
		Result:             result,
		Diagnostic:         diagnostic,
	}
	return aare.Encode()
}

// handleHLSPass runs the server half of HLS5: verify f(StoC) from
// the client, answer with f(CtoS).
func (a *association) handleHLSPass(request pdu.PDU) (pdu.PDU, error) {
	action, ok := request.(pdu.ActionRequestNormal)
	if !ok || action.Method != hlsMethod {
		return nil, nil
	}
	if action.Parameters == nil || action.Parameters.Tag != axdr.TagOctetString {
		return nil, dlms.NewError(dlms.KindSecurity, "hls: missing challenge response")
	}
	fStoC, _ := action.Parameters.Value.([]byte)
	if err := security.VerifyHLS5Response(a.cfg.AuthenticationKey, a.clientTitle, a.serverChallenge, fStoC); err != nil {
		return nil, err
	}
	counter, err := a.sendEnv.Counter()
	if err != nil {
		return nil, err
	}
	fCtoS, err := security.HLS5Response(a.cfg.AuthenticationKey, a.cfg.SystemTitle, counter, a.clientChallenge)
	if err != nil {
		return nil, err
	}
	a.hlsPending = false
	a.authenticated = true
	log.Debug("hls5 client verified")
	returnData := pdu.DataResult(axdr.NewOctetString(fCtoS))
	return pdu.ActionResponseNormal{
		Invoke: action.Invoke,
		Result: pdu.ActionResult{Result: pdu.ActionSuccess, ReturnData: &returnData},
	}, nil
}

var hlsMethod = dlms.MethodDescriptor{
	ClassId:    15,
	InstanceId: dlms.NewObisCode(0, 0, 40, 0, 0, 255),
	MethodId:   1,
}

func oidEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isGloRequestTag(tag byte) bool {
	switch tag {
	case security.TagGloGetRequest, security.TagGloSetRequest, security.TagGloActionRequest, security.TagGeneralGloCiphering:
		return true
	}
	return false
}

func gloResponseTag(tag byte) (byte, error) {
	switch tag {
	case pdu.TagGetResponse:
		return security.TagGloGetResponse, nil
	case pdu.TagSetResponse:
		return security.TagGloSetResponse, nil
	case pdu.TagActionResponse:
		return security.TagGloActionResponse, nil
	case pdu.TagExceptionResponse:
		// Exceptions travel in the general envelope.
		return security.TagGeneralGloCiphering, nil
	default:
		return 0, dlms.Errorf(dlms.KindProtocol, "no ciphered form for tag 0x%02X", tag)
	}
}
