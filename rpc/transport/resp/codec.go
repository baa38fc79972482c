package resp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/tidwall/redcon"
)

// ErrMalformedRequest marks bytes that do not form a valid get or set request
var ErrMalformedRequest = errors.New("malformed request")

// UnsupportedOperationError is returned for well-formed commands the bridge does not serve
type UnsupportedOperationError struct {
	Command string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported command '%s'", e.Command)
}

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// Decoder reads one request at a time from a byte stream
type Decoder struct {
	rd *redcon.Reader
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{rd: redcon.NewReader(r)}
}

// Next decodes the next request. It returns io.EOF once the peer closed the stream,
// an error wrapping ErrMalformedRequest for invalid input and
// *UnsupportedOperationError for commands other than GET and SET.
func (d *Decoder) Next() (dispatch.Operation, error) {
	cmd, err := d.rd.ReadCommand()
	if err != nil {
		if isTransportError(err) {
			return dispatch.Operation{}, err
		}
		return dispatch.Operation{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return ParseCommand(cmd.Args)
}

// ParseCommand maps the arguments of a command to an Operation
func ParseCommand(args [][]byte) (dispatch.Operation, error) {
	if len(args) == 0 {
		return dispatch.Operation{}, fmt.Errorf("%w: empty command", ErrMalformedRequest)
	}

	name := strings.ToLower(string(args[0]))
	switch name {
	case "get":
		if len(args) != 2 {
			return dispatch.Operation{}, arityError(name)
		}
		return dispatch.NewGetOperation(string(args[1])), nil
	case "set":
		if len(args) != 3 {
			return dispatch.Operation{}, arityError(name)
		}
		// args point into the reader buffer, which is reused by the next read
		value := append([]byte(nil), args[2]...)
		return dispatch.NewSetOperation(string(args[1]), value), nil
	default:
		return dispatch.Operation{}, &UnsupportedOperationError{Command: name}
	}
}

func arityError(name string) error {
	return fmt.Errorf("%w: wrong number of arguments for '%s' command", ErrMalformedRequest, name)
}

// isTransportError reports whether err came from the underlying stream rather than the parser
func isTransportError(err error) bool {
	var netErr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.As(err, &netErr)
}

// --------------------------------------------------------------------------
// Encoder
// --------------------------------------------------------------------------

// Encoder writes responses to a byte stream
type Encoder struct {
	wr *redcon.Writer
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{wr: redcon.NewWriter(w)}
}

// WriteOutcome encodes an outcome and flushes it:
// Value as bulk string, Absent as null bulk string, Acknowledged as +OK and Failure as -ERR.
func (e *Encoder) WriteOutcome(out dispatch.Outcome) error {
	switch out.Type {
	case dispatch.OutTValue:
		e.wr.WriteBulk(out.Value)
	case dispatch.OutTAbsent:
		e.wr.WriteNull()
	case dispatch.OutTAcknowledged:
		e.wr.WriteString("OK")
	default:
		e.wr.WriteError("ERR " + out.Err)
	}
	return e.wr.Flush()
}

// WriteError encodes an error reply and flushes it
func (e *Encoder) WriteError(msg string) error {
	e.wr.WriteError("ERR " + msg)
	return e.wr.Flush()
}
