package client

import (
	"sync"
	"time"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/acse"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
	"github.com/openmetering/godlms/pkg/security"
	log "github.com/sirupsen/logrus"
)

// Authentication selects the association authentication mechanism.
type Authentication uint8

const (
	AuthNone Authentication = iota
	AuthLow
	AuthHighGMAC
)

// Settings configures one client association.
type Settings struct {
	Ciphered       bool
	Authentication Authentication
	Password       []byte
	SystemTitle    []byte
	// Global unicast encryption key, authentication key and the
	// master key (KEK) for key transfer.
	EncryptionKey     []byte
	AuthenticationKey []byte
	MasterKey         []byte
	MaxPDUSize        uint16
	Conformance       acse.Conformance
	ResponseTimeout   time.Duration
	ChallengeSize     int
}

func (s *Settings) fillDefaults() {
	if s.MaxPDUSize == 0 {
		s.MaxPDUSize = 0xFFFF
	}
	if s.Conformance == 0 {
		s.Conformance = acse.DefaultLNConformance
	}
	if s.ResponseTimeout == 0 {
		s.ResponseTimeout = 5 * time.Second
	}
	if s.ChallengeSize == 0 {
		s.ChallengeSize = 16
	}
}

// currentAssociation is the object carrying the HLS handshake.
var currentAssociationHLSMethod = dlms.MethodDescriptor{
	ClassId:    15,
	InstanceId: dlms.NewObisCode(0, 0, 40, 0, 0, 255),
	MethodId:   1, // reply-to-HLS-authentication
}

// Association is one application association with a server. It owns
// the invoke-id table and the security envelopes. A single
// association must not be driven by two goroutines at once.
type Association struct {
	mu       sync.Mutex
	session  Session
	settings Settings

	associated   bool
	conformance  acse.Conformance
	serverMaxPDU uint16
	serverTitle  []byte

	cipher  *security.Cipher
	sendEnv *security.Envelope
	recvEnv *security.Envelope

	invokeIDs *InvokeAllocator
	unmatched uint64

	// OnNotification receives unsolicited event notifications
	// observed while awaiting responses.
	OnNotification func(pdu.EventNotification)

	clientChallenge []byte
	serverChallenge []byte
}

// NewAssociation builds an unassociated client over a session.
func NewAssociation(session Session, settings Settings) (*Association, error) {
	settings.fillDefaults()
	a := &Association{
		session:   session,
		settings:  settings,
		invokeIDs: NewInvokeAllocator(pdu.MaxInvokeId),
	}
	if settings.Ciphered || settings.Authentication == AuthHighGMAC {
		if len(settings.SystemTitle) != security.SystemTitleLength {
			return nil, dlms.NewError(dlms.KindSecurity, "client system title must be 8 bytes")
		}
		cipher, err := security.NewCipher(settings.EncryptionKey, settings.AuthenticationKey)
		if err != nil {
			return nil, err
		}
		a.cipher = cipher
		a.sendEnv, err = security.NewEnvelope(cipher, settings.SystemTitle, security.NewFrameCounter(1))
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// UnmatchedResponses counts responses dropped for want of a pending
// invoke id.
func (a *Association) UnmatchedResponses() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unmatched
}

// Conformance returns the negotiated conformance block.
func (a *Association) Conformance() acse.Conformance {
	return a.conformance
}

// ServerMaxPDUSize returns the server-side PDU bound.
func (a *Association) ServerMaxPDUSize() uint16 {
	return a.serverMaxPDU
}

// Associate opens the session and performs the AARQ/AARE handshake,
// followed by the HLS pass when high level security is configured.
func (a *Association) Associate() error {
	if a.associated {
		return dlms.NewError(dlms.KindProtocol, "already associated")
	}
	if err := a.session.Open(); err != nil {
		return err
	}

	aarq, err := a.buildAARQ()
	if err != nil {
		return err
	}
	encoded, err := aarq.Encode()
	if err != nil {
		return err
	}
	if err := a.session.Send(encoded); err != nil {
		return err
	}
	raw, err := a.session.Receive()
	if err != nil {
		return err
	}
	aare, err := acse.DecodeAARE(raw)
	if err != nil {
		return err
	}
	if err := a.installAARE(aare); err != nil {
		return err
	}
	a.associated = true
	log.WithFields(log.Fields{
		"conformance": a.conformance,
		"maxPDU":      a.serverMaxPDU,
	}).Info("association established")

	if a.settings.Authentication == AuthHighGMAC {
		if err := a.authenticateHLS(); err != nil {
			a.associated = false
			_ = a.session.Close()
			return err
		}
	}
	return nil
}

func (a *Association) buildAARQ() (acse.AARQ, error) {
	initiate := acse.NewInitiateRequest(a.settings.Conformance, a.settings.MaxPDUSize)
	userInfo := initiate.Encode()

	aarq := acse.AARQ{UserInformation: userInfo}
	if a.settings.Ciphered {
		aarq.ApplicationContext = acse.ContextLNCipher
		protected, err := a.sendEnv.Protect(acse.TagGloInitiateRequest, security.NewControl(0, true, true, false), userInfo)
		if err != nil {
			return acse.AARQ{}, err
		}
		aarq.UserInformation = protected
		aarq.CallingAPTitle = a.settings.SystemTitle
	} else {
		aarq.ApplicationContext = acse.ContextLNNoCipher
	}

	switch a.settings.Authentication {
	case AuthLow:
		aarq.ACSERequirements = true
		aarq.Mechanism = acse.MechanismLow
		aarq.AuthenticationValue = a.settings.Password
	case AuthHighGMAC:
		challenge, err := security.GenerateChallenge(a.settings.ChallengeSize)
		if err != nil {
			return acse.AARQ{}, err
		}
		a.clientChallenge = challenge
		aarq.ACSERequirements = true
		aarq.Mechanism = acse.MechanismHighGMAC
		aarq.AuthenticationValue = challenge
		aarq.CallingAPTitle = a.settings.SystemTitle
	}
	return aarq, nil
}

func (a *Association) installAARE(aare acse.AARE) error {
	if aare.Result != acse.ResultAccepted {
		return dlms.Errorf(dlms.KindConnection, "association rejected: result %d, diagnostic %d", aare.Result, aare.Diagnostic)
	}
	userInfo := aare.UserInformation
	a.serverTitle = aare.RespondingAPTitle
	a.serverChallenge = aare.AuthenticationValue

	if a.settings.Ciphered || a.settings.Authentication == AuthHighGMAC {
		if len(a.serverTitle) != security.SystemTitleLength {
			return dlms.NewError(dlms.KindSecurity, "server system title missing or not 8 bytes")
		}
		env, err := security.NewEnvelope(a.cipher, a.serverTitle, security.NewFrameCounter(1))
		if err != nil {
			return err
		}
		a.recvEnv = env
	}
	if a.settings.Ciphered {
		tag, plain, err := a.recvEnv.Unprotect(userInfo)
		if err != nil {
			return err
		}
		if tag != acse.TagGloInitiateResponse {
			return dlms.Errorf(dlms.KindProtocol, "expected glo-initiate-response, got 0x%02X", tag)
		}
		userInfo = plain
	}
	response, err := acse.DecodeInitiateResponse(userInfo)
	if err != nil {
		return err
	}
	if response.NegotiatedVersion != dlms.DlmsVersion {
		return dlms.Errorf(dlms.KindProtocol, "negotiated DLMS version %d", response.NegotiatedVersion)
	}
	a.conformance = a.settings.Conformance.And(response.NegotiatedConformance)
	a.serverMaxPDU = response.ServerMaxPDUSize
	return nil
}

// authenticateHLS runs the third pass of HLS5-GMAC: an ACTION on the
// current association object proving both sides hold the
// authentication key.
func (a *Association) authenticateHLS() error {
	counter, err := a.sendEnv.Counter()
	if err != nil {
		return err
	}
	fStoC, err := security.HLS5Response(a.settings.AuthenticationKey, a.settings.SystemTitle, counter, a.serverChallenge)
	if err != nil {
		return err
	}
	params := axdr.NewOctetString(fStoC)
	returned, err := a.Action(currentAssociationHLSMethod, &params)
	if err != nil {
		return err
	}
	if returned == nil || returned.Tag != axdr.TagOctetString {
		return dlms.NewError(dlms.KindSecurity, "hls: server returned no GMAC")
	}
	fCtoS, _ := returned.Value.([]byte)
	if err := security.VerifyHLS5Response(a.settings.AuthenticationKey, a.serverTitle, a.clientChallenge, fCtoS); err != nil {
		return err
	}
	log.Debug("hls5 mutual authentication complete")
	return nil
}

// Release sends RLRQ, awaits RLRE and closes the session. Pending
// state is dropped.
func (a *Association) Release() error {
	if !a.associated {
		return a.session.Close()
	}
	reason := acse.ReleaseNormal
	rlrq := acse.RLRQ{Reason: &reason}
	encoded, err := rlrq.Encode()
	if err == nil {
		if err := a.session.Send(encoded); err == nil {
			if raw, err := a.session.Receive(); err == nil {
				if _, err := acse.DecodeRLRE(raw); err != nil {
					log.WithError(err).Warn("bad release response")
				}
			}
		}
	}
	a.associated = false
	if a.recvEnv != nil {
		a.recvEnv.ResetReplay()
	}
	return a.session.Close()
}

// transact sends one request and blocks until the response with the
// same invoke id arrives. Notifications observed meanwhile go to
// OnNotification; other unmatched PDUs are counted and dropped.
func (a *Association) transact(request pdu.PDU, invokeId uint8) (pdu.PDU, error) {
	if !a.associated {
		return nil, dlms.NewError(dlms.KindConnection, "not associated")
	}
	encoded, err := pdu.Encode(request)
	if err != nil {
		return nil, err
	}
	if a.settings.Ciphered {
		gloTag, err := gloRequestTag(encoded[0])
		if err != nil {
			return nil, err
		}
		encoded, err = a.sendEnv.Protect(gloTag, security.NewControl(0, true, true, false), encoded)
		if err != nil {
			return nil, err
		}
	}
	if err := a.session.Send(encoded); err != nil {
		a.invokeIDs.Release(invokeId)
		return nil, err
	}

	deadline := time.Now().Add(a.settings.ResponseTimeout)
	for {
		if time.Now().After(deadline) {
			a.invokeIDs.Quarantine(invokeId, a.settings.ResponseTimeout)
			return nil, dlms.NewError(dlms.KindTimeout, "response deadline elapsed")
		}
		raw, err := a.session.Receive()
		if err != nil {
			if dlms.IsKind(err, dlms.KindTimeout) {
				a.invokeIDs.Quarantine(invokeId, a.settings.ResponseTimeout)
			} else {
				a.invokeIDs.Release(invokeId)
			}
			return nil, err
		}
		if a.settings.Ciphered && len(raw) > 0 && isGloTag(raw[0]) {
			_, raw, err = a.recvEnv.Unprotect(raw)
			if err != nil {
				return nil, err
			}
		}
		response, err := pdu.Decode(raw)
		if err != nil {
			return nil, err
		}
		switch p := response.(type) {
		case pdu.EventNotification:
			if a.OnNotification != nil {
				a.OnNotification(p)
			}
			continue
		case pdu.ExceptionResponse:
			a.invokeIDs.Release(invokeId)
			return nil, dlms.Errorf(dlms.KindProtocol, "exception response: state %d, service %d", p.StateError, p.ServiceError)
		}
		id, ok := responseInvokeId(response)
		if !ok || id != invokeId {
			a.mu.Lock()
			a.unmatched++
			a.mu.Unlock()
			log.WithField("invokeId", id).Debug("dropping unmatched response")
			continue
		}
		a.invokeIDs.Release(invokeId)
		return response, nil
	}
}

// nextInvoke allocates an id and packs it into the priority byte.
func (a *Association) nextInvoke() (uint8, pdu.InvokeIdAndPriority, error) {
	id, err := a.invokeIDs.Allocate()
	if err != nil {
		return 0, 0, err
	}
	invoke, err := pdu.NewInvokeIdAndPriority(id, false, true)
	if err != nil {
		a.invokeIDs.Release(id)
		return 0, 0, err
	}
	return id, invoke, nil
}

func responseInvokeId(p pdu.PDU) (uint8, bool) {
	switch r := p.(type) {
	case pdu.GetResponseNormal:
		return r.Invoke.InvokeId(), true
	case pdu.GetResponseWithDataBlock:
		return r.Invoke.InvokeId(), true
	case pdu.GetResponseWithList:
		return r.Invoke.InvokeId(), true
	case pdu.SetResponseNormal:
		return r.Invoke.InvokeId(), true
	case pdu.SetResponseDataBlock:
		return r.Invoke.InvokeId(), true
	case pdu.SetResponseLastDataBlock:
		return r.Invoke.InvokeId(), true
	case pdu.SetResponseLastDataBlockWithList:
		return r.Invoke.InvokeId(), true
	case pdu.SetResponseWithList:
		return r.Invoke.InvokeId(), true
	case pdu.ActionResponseNormal:
		return r.Invoke.InvokeId(), true
	case pdu.ActionResponseWithPblock:
		return r.Invoke.InvokeId(), true
	case pdu.ActionResponseWithList:
		return r.Invoke.InvokeId(), true
	case pdu.ActionResponseNextPblock:
		return r.Invoke.InvokeId(), true
	}
	return 0, false
}

func gloRequestTag(tag byte) (byte, error) {
	switch tag {
	case pdu.TagGetRequest:
		return security.TagGloGetRequest, nil
	case pdu.TagSetRequest:
		return security.TagGloSetRequest, nil
	case pdu.TagActionRequest:
		return security.TagGloActionRequest, nil
	default:
		return 0, dlms.Errorf(dlms.KindProtocol, "no ciphered form for tag 0x%02X", tag)
	}
}

func isGloTag(tag byte) bool {
	switch tag {
	case security.TagGloGetRequest, security.TagGloSetRequest, security.TagGloActionRequest,
		security.TagGloGetResponse, security.TagGloSetResponse, security.TagGloActionResponse,
		security.TagGeneralGloCiphering:
		return true
	}
	return false
}
