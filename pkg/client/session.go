// Package client implements the DLMS/COSEM client side: the
// association lifecycle with its ACSE handshake and optional
// ciphering, invoke-id correlation of requests and responses, block
// transfer assembly and the GET/SET/ACTION services.
package client

// Session is the sublayer carrying APDUs: HDLC or the TCP/UDP
// wrapper. Both pkg/hdlc and pkg/wrapper satisfy it.
type Session interface {
	Open() error
	Send(apdu []byte) error
	Receive() ([]byte, error)
	Close() error
}
