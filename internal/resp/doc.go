// Package resp implements the RESP2 wire protocol for KVMesh.
//
// This package provides a byte-exact encoder and decoder between the
// protocol's CRLF-delimited frames and the Value vocabulary:
//
//   - Simple strings (+), errors (-), integers (:)
//   - Bulk strings ($), including the null bulk $-1
//   - Arrays (*), including the null array *-1
//   - Inline commands (bare text line) for telnet-style clients
//
// ReadCommand is the server's request path: it accepts either an array
// of bulk strings or an inline command and enforces the protocol
// limits (array length, bulk length, inline line length). A limit
// violation returns ErrLimitExceeded; any other framing violation
// returns ErrProtocol.
//
// Usage:
//
//	cmd, err := resp.ReadCommand(br)
//	reply := resp.SimpleString("OK")
//	w.Write(resp.Marshal(reply))
package resp
