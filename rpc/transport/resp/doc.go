// Package resp implements the request framing of the bridge on top of the
// Redis serialization protocol (RESP), using the reader and writer of
// github.com/tidwall/redcon.
//
// The Decoder turns a byte stream into dispatch.Operation values. Only GET key
// and SET key value are accepted; any other command yields an
// *UnsupportedOperationError and invalid input an error wrapping
// ErrMalformedRequest. Errors of the underlying stream (io.EOF, closed or
// timed-out connections) are returned unchanged.
//
// The Encoder writes one reply per dispatch.Outcome:
//
//	Value         $<len>\r\n<bytes>\r\n
//	Absent        $-1\r\n
//	Acknowledged  +OK\r\n
//	Failure       -ERR <message>\r\n
package resp
