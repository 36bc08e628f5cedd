package pdu

import (
	"fmt"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
)

// AccessResult is the one-byte data-access-result taxonomy.
type AccessResult uint8

const (
	AccessSuccess                AccessResult = 0
	AccessHardwareFault          AccessResult = 1
	AccessTemporaryFailure       AccessResult = 2
	AccessReadWriteDenied        AccessResult = 3
	AccessObjectUndefined        AccessResult = 4
	AccessObjectClassInconsistent AccessResult = 9
	AccessObjectUnavailable      AccessResult = 11
	AccessTypeUnmatched          AccessResult = 12
	AccessScopeViolated          AccessResult = 13
	AccessDataBlockUnavailable   AccessResult = 14
	AccessLongGetAborted         AccessResult = 15
	AccessNoLongGetInProgress    AccessResult = 16
	AccessLongSetAborted         AccessResult = 17
	AccessNoLongSetInProgress    AccessResult = 18
	AccessDataBlockNumberInvalid AccessResult = 19
	AccessOtherReason            AccessResult = 250
)

var accessResultNames = map[AccessResult]string{
	AccessSuccess:                 "success",
	AccessHardwareFault:           "hardware-fault",
	AccessTemporaryFailure:        "temporary-failure",
	AccessReadWriteDenied:         "read-write-denied",
	AccessObjectUndefined:         "object-undefined",
	AccessObjectClassInconsistent: "object-class-inconsistent",
	AccessObjectUnavailable:       "object-unavailable",
	AccessTypeUnmatched:           "type-unmatched",
	AccessScopeViolated:           "scope-of-access-violated",
	AccessDataBlockUnavailable:    "data-block-unavailable",
	AccessLongGetAborted:          "long-get-aborted",
	AccessNoLongGetInProgress:     "no-long-get-in-progress",
	AccessLongSetAborted:          "long-set-aborted",
	AccessNoLongSetInProgress:     "no-long-set-in-progress",
	AccessDataBlockNumberInvalid:  "data-block-number-invalid",
	AccessOtherReason:             "other-reason",
}

func (r AccessResult) String() string {
	name, ok := accessResultNames[r]
	if !ok {
		return fmt.Sprintf("data-access-result %d", uint8(r))
	}
	return name
}

// Err maps a failed access result onto the error taxonomy; success
// maps to nil.
func (r AccessResult) Err() error {
	switch r {
	case AccessSuccess:
		return nil
	case AccessReadWriteDenied, AccessScopeViolated:
		return dlms.NewError(dlms.KindAccessDenied, r.String())
	default:
		return dlms.NewError(dlms.KindProtocol, r.String())
	}
}

// GetDataResult is the per-entry outcome of a GET: either a value or
// an access result.
type GetDataResult struct {
	Data   *axdr.Data
	Result AccessResult
}

// DataResult wraps a value into a successful result.
func DataResult(d axdr.Data) GetDataResult {
	return GetDataResult{Data: &d}
}

// ErrorResult wraps a failure code.
func ErrorResult(r AccessResult) GetDataResult {
	return GetDataResult{Result: r}
}

func (g GetDataResult) encode(dst []byte) ([]byte, error) {
	if g.Data != nil {
		dst = append(dst, 0x00)
		return axdr.Append(dst, *g.Data)
	}
	return append(dst, 0x01, byte(g.Result)), nil
}

func decodeGetDataResult(buf []byte) (GetDataResult, int, error) {
	if len(buf) < 2 {
		return GetDataResult{}, 0, dlms.NewError(dlms.KindInvalidData, "get-data-result: truncated")
	}
	switch buf[0] {
	case 0x00:
		d, n, err := axdr.Decode(buf[1:])
		if err != nil {
			return GetDataResult{}, 0, err
		}
		return GetDataResult{Data: &d}, n + 1, nil
	case 0x01:
		return GetDataResult{Result: AccessResult(buf[1])}, 2, nil
	default:
		return GetDataResult{}, 0, dlms.Errorf(dlms.KindInvalidData, "get-data-result: bad choice 0x%02X", buf[0])
	}
}

// ActionResultCode is the one-byte action-result taxonomy; values
// shadow the access results where they overlap.
type ActionResultCode uint8

const (
	ActionSuccess          ActionResultCode = 0
	ActionHardwareFault    ActionResultCode = 1
	ActionTemporaryFailure ActionResultCode = 2
	ActionReadWriteDenied  ActionResultCode = 3
	ActionObjectUndefined  ActionResultCode = 4
	ActionObjectClassInconsistent ActionResultCode = 9
	ActionObjectUnavailable ActionResultCode = 11
	ActionTypeUnmatched     ActionResultCode = 12
	ActionScopeViolated     ActionResultCode = 13
	ActionDataBlockUnavailable ActionResultCode = 14
	ActionLongActionAborted ActionResultCode = 15
	ActionNoLongActionInProgress ActionResultCode = 16
	ActionOtherReason       ActionResultCode = 250
)

func (c ActionResultCode) String() string {
	if c == ActionLongActionAborted {
		return "long-action-aborted"
	}
	if c == ActionNoLongActionInProgress {
		return "no-long-action-in-progress"
	}
	return AccessResult(c).String()
}

// ActionResult carries the method outcome with optional return data.
type ActionResult struct {
	Result     ActionResultCode
	ReturnData *GetDataResult
}

func (a ActionResult) encode(dst []byte) ([]byte, error) {
	dst = append(dst, byte(a.Result))
	if a.ReturnData == nil {
		return append(dst, 0x00), nil
	}
	dst = append(dst, 0x01)
	return a.ReturnData.encode(dst)
}

func decodeActionResult(buf []byte) (ActionResult, int, error) {
	if len(buf) < 2 {
		return ActionResult{}, 0, dlms.NewError(dlms.KindInvalidData, "action-result: truncated")
	}
	result := ActionResult{Result: ActionResultCode(buf[0])}
	switch buf[1] {
	case 0x00:
		return result, 2, nil
	case 0x01:
		data, n, err := decodeGetDataResult(buf[2:])
		if err != nil {
			return ActionResult{}, 0, err
		}
		result.ReturnData = &data
		return result, n + 2, nil
	default:
		return ActionResult{}, 0, dlms.Errorf(dlms.KindInvalidData, "action-result: bad optional flag 0x%02X", buf[1])
	}
}
