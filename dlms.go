// Package dlms holds the shared contracts of the DLMS/COSEM stack:
// the byte stream accessor used by every session layer, the error
// taxonomy, OBIS codes and the COSEM attribute/method descriptors.
// The protocol layers themselves live under pkg/.
package dlms

// DlmsVersion is the protocol version negotiated in InitiateRequest/Response.
const DlmsVersion = 6
