package client

import (
	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/hdlc"
	"github.com/openmetering/godlms/pkg/transport"
	"github.com/openmetering/godlms/pkg/wrapper"
)

// transportSession opens the physical transport before the session
// handshake, so Associate drives the whole connect path.
type transportSession struct {
	transport dlms.Transport
	inner     Session
}

func (t *transportSession) Open() error {
	if err := t.transport.Open(); err != nil {
		return err
	}
	return t.inner.Open()
}

func (t *transportSession) Send(apdu []byte) error      { return t.inner.Send(apdu) }
func (t *transportSession) Receive() ([]byte, error)    { return t.inner.Receive() }
func (t *transportSession) Close() error                { return t.inner.Close() }

// Builder assembles transport, session layer and association
// settings into a ready client.
type Builder struct {
	transport  dlms.Transport
	useHDLC    bool
	hdlcConfig hdlc.Config
	useWrapper bool
	wrapConfig wrapper.Config
	settings   Settings
	err        error
}

// NewBuilder starts an empty build.
func NewBuilder() *Builder {
	return &Builder{}
}

// TCP selects a TCP transport.
func (b *Builder) TCP(host string, port int) *Builder {
	b.transport = transport.NewTCP(host, port)
	return b
}

// UDP selects a UDP transport.
func (b *Builder) UDP(host string, port int) *Builder {
	b.transport = transport.NewUDP(host, port)
	return b
}

// Serial selects a serial transport.
func (b *Builder) Serial(device string, baud int) *Builder {
	b.transport = transport.NewSerial(device, baud)
	return b
}

// Transport installs a custom transport.
func (b *Builder) Transport(t dlms.Transport) *Builder {
	b.transport = t
	return b
}

// HDLC selects the HDLC session layer with the given address pair.
func (b *Builder) HDLC(local, remote hdlc.Address, parameters hdlc.Parameters) *Builder {
	b.useHDLC = true
	b.hdlcConfig = hdlc.Config{Local: local, Remote: remote, Parameters: parameters}
	return b
}

// Wrapper selects the wrapper session layer with the given port
// pair.
func (b *Builder) Wrapper(source, destination uint16) *Builder {
	b.useWrapper = true
	b.wrapConfig = wrapper.Config{Source: source, Destination: destination}
	return b
}

// Security installs the association settings.
func (b *Builder) Security(settings Settings) *Builder {
	b.settings = settings
	return b
}

// Build wires everything into an unassociated client.
func (b *Builder) Build() (*Association, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.transport == nil {
		return nil, dlms.NewError(dlms.KindInvalidData, "builder: no transport selected")
	}
	if b.useHDLC == b.useWrapper {
		return nil, dlms.NewError(dlms.KindInvalidData, "builder: select exactly one of HDLC and wrapper")
	}
	b.settings.fillDefaults()
	var inner Session
	if b.useHDLC {
		b.hdlcConfig.ResponseTimeout = b.settings.ResponseTimeout
		inner = hdlc.New(b.transport, b.hdlcConfig)
	} else {
		b.wrapConfig.ReadTimeout = b.settings.ResponseTimeout
		inner = wrapper.New(b.transport, b.wrapConfig)
	}
	return NewAssociation(&transportSession{transport: b.transport, inner: inner}, b.settings)
}
