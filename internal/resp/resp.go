// Package resp implements the RESP2 wire codec: a byte-exact
// encoder/decoder between the protocol's CRLF-delimited frames and the
// Value vocabulary, plus a request reader for the server's hot path.
package resp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Protocol limits to prevent resource exhaustion from hostile clients.
const (
	// MaxArrayLen limits the number of elements in a RESP array.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB).
	MaxBulkLen = 512 * 1024

	// MaxInlineLen limits inline command line length (4KB).
	MaxInlineLen = 4 * 1024
)

var (
	// ErrProtocol marks a malformed frame. Callers treat it as
	// connection-fatal, unlike an io.EOF which is a plain disconnect.
	ErrProtocol = errors.New("resp: protocol error")

	// ErrLimitExceeded marks a frame that exceeds a protocol limit.
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Decode reads one complete value from r, dispatching on the first byte.
// A truncated stream surfaces io.EOF or io.ErrUnexpectedEOF so the caller
// can treat it as a disconnect; a malformed frame surfaces ErrProtocol.
func Decode(r *bufio.Reader) (Value, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch prefix {
	case '+':
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return Value{}, err
		}
		return SimpleStringValue(line), nil

	case '-':
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return Value{}, err
		}
		return ErrorValue(line), nil

	case ':':
		line, err := readLine(r, 64)
		if err != nil {
			return Value{}, err
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
		}
		return IntegerValue(n), nil

	case '$':
		return decodeBulk(r)

	case '*':
		return decodeArray(r)

	default:
		return Value{}, fmt.Errorf("%w: unexpected byte %q", ErrProtocol, prefix)
	}
}

func decodeBulk(r *bufio.Reader) (Value, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return Value{}, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return Value{}, fmt.Errorf("%w: invalid bulk length %q", ErrProtocol, line)
	}
	if n == -1 {
		return NullBulk(), nil
	}
	if n < 0 {
		return Value{}, fmt.Errorf("%w: negative bulk length %d", ErrProtocol, n)
	}
	if n > MaxBulkLen {
		return Value{}, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	// Read exactly n payload bytes plus the trailing CRLF, even when the
	// frame spans multiple underlying reads.
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Value{}, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return Value{}, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return BulkValue(buf[:n]), nil
}

func decodeArray(r *bufio.Reader) (Value, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return Value{}, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return Value{}, fmt.Errorf("%w: invalid array length %q", ErrProtocol, line)
	}
	if n == -1 {
		return NullArray(), nil
	}
	if n < 0 {
		return Value{}, fmt.Errorf("%w: negative array length %d", ErrProtocol, n)
	}
	if n > MaxArrayLen {
		return Value{}, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	elems := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		elem, err := Decode(r)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, elem)
	}
	return ArrayValue(elems...), nil
}

// Encode writes the exact RESP2 framing of v to w. The caller flushes.
func Encode(w *bufio.Writer, v Value) error {
	switch v.Type {
	case SimpleString:
		_, err := w.WriteString("+" + v.Str + "\r\n")
		return err

	case Error:
		_, err := w.WriteString("-" + v.Str + "\r\n")
		return err

	case Integer:
		_, err := w.WriteString(":" + strconv.FormatInt(v.Num, 10) + "\r\n")
		return err

	case BulkString:
		if v.Null {
			_, err := w.WriteString("$-1\r\n")
			return err
		}
		if _, err := w.WriteString("$" + strconv.Itoa(len(v.Bulk)) + "\r\n"); err != nil {
			return err
		}
		if _, err := w.Write(v.Bulk); err != nil {
			return err
		}
		_, err := w.WriteString("\r\n")
		return err

	case Array:
		if v.Null {
			_, err := w.WriteString("*-1\r\n")
			return err
		}
		if _, err := w.WriteString("*" + strconv.Itoa(len(v.Array)) + "\r\n"); err != nil {
			return err
		}
		for _, elem := range v.Array {
			if err := Encode(w, elem); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: cannot encode type %q", ErrProtocol, byte(v.Type))
	}
}

// Marshal returns the RESP2 encoding of v as a byte slice.
func Marshal(v Value) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	_ = Encode(w, v)
	_ = w.Flush()
	return buf.Bytes()
}

// ReadCommand reads one client request: an array of bulk strings, or an
// inline command line for clients that send bare text.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	switch b[0] {
	case '*':
		return readArrayCommand(r)
	default:
		// Inline command (rare, but used by some clients): "PING\r\n"
		line, err := readCRLFLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil, nil
		}
		parts := strings.Fields(line)
		out := make([][]byte, 0, len(parts))
		for _, p := range parts {
			out = append(out, []byte(p))
		}
		return out, nil
	}
}

func readArrayCommand(r *bufio.Reader) ([][]byte, error) {
	// "*<n>\r\n"
	line, err := readCRLFLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '*' {
		return nil, fmt.Errorf("%w: expected array", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length", ErrProtocol)
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkArg(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readBulkArg(r *bufio.Reader) ([]byte, error) {
	line, err := readCRLFLine(r, 64)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '$' {
		return nil, fmt.Errorf("%w: expected bulk string", ErrProtocol)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: invalid bulk length", ErrProtocol)
	}
	if n > MaxBulkLen {
		return nil, fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

// readLine reads a CRLF-terminated line after the frame marker has
// already been consumed.
func readLine(r *bufio.Reader, maxLen int) (string, error) {
	return readCRLFLine(r, maxLen)
}

func readCRLFLine(r *bufio.Reader, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", fmt.Errorf("%w: invalid maxLen", ErrProtocol)
	}

	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}

	return string(bytes.TrimSuffix(buf, []byte("\r\n"))), nil
}

// NormalizeCommandName uppercases an ASCII command token without
// allocating for tokens that are already uppercase.
func NormalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
