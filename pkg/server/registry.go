// Package server implements the meter side: the COSEM object
// registry with its uniform access contract, the request engine
// translating application PDUs into object calls, and a TCP
// listener speaking the wrapper session layer.
package server

import (
	"errors"
	"sync"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/pdu"
)

// Errors an object implementation may return; the engine maps them
// onto data-access-results.
var (
	ErrAttributeUnknown = errors.New("attribute not part of the object class")
	ErrMethodUnknown    = errors.New("method not part of the object class")
	ErrAccessDenied     = errors.New("access denied")
	ErrTemporaryFailure = errors.New("temporarily unavailable")
)

// Object is the uniform access contract of a registered COSEM
// object.
type Object interface {
	// GetAttribute reads one attribute, honoring selective access.
	GetAttribute(id int8, access *pdu.SelectiveAccess) (axdr.Data, error)
	// SetAttribute writes one attribute.
	SetAttribute(id int8, value axdr.Data, access *pdu.SelectiveAccess) error
	// InvokeMethod runs one method, returning optional result data.
	InvokeMethod(id int8, parameters *axdr.Data) (*axdr.Data, error)
}

// Key addresses one object instance.
type Key struct {
	ClassId uint16
	Obis    dlms.ObisCode
}

// Registry maps (class id, OBIS code) to object handles. Lookups
// run concurrently; registration excludes them.
type Registry struct {
	mu      sync.RWMutex
	objects map[Key]Object
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[Key]Object)}
}

// Register installs an object, replacing any previous registration.
func (r *Registry) Register(classId uint16, obis dlms.ObisCode, object Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[Key{ClassId: classId, Obis: obis}] = object
}

// Unregister removes an object.
func (r *Registry) Unregister(classId uint16, obis dlms.ObisCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, Key{ClassId: classId, Obis: obis})
}

// Lookup finds an object handle.
func (r *Registry) Lookup(classId uint16, obis dlms.ObisCode) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	object, ok := r.objects[Key{ClassId: classId, Obis: obis}]
	return object, ok
}

// Len reports the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// accessResultFor maps object errors onto the result taxonomy.
func accessResultFor(err error) pdu.AccessResult {
	switch {
	case err == nil:
		return pdu.AccessSuccess
	case errors.Is(err, ErrAttributeUnknown), errors.Is(err, ErrMethodUnknown):
		return pdu.AccessObjectClassInconsistent
	case errors.Is(err, ErrAccessDenied), dlms.IsKind(err, dlms.KindAccessDenied):
		return pdu.AccessReadWriteDenied
	case errors.Is(err, ErrTemporaryFailure):
		return pdu.AccessTemporaryFailure
	case dlms.IsKind(err, dlms.KindInvalidData):
		return pdu.AccessTypeUnmatched
	default:
		return pdu.AccessOtherReason
	}
}
