package http

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// maxLineLength bounds the request line and each header line. Longer
	// input is treated as malformed rather than buffered without limit.
	maxLineLength = 8192

	// maxHeaderCount bounds the number of header lines read per request.
	maxHeaderCount = 100
)

// ErrMalformedRequest marks input that could not be parsed as an HTTP/1.x
// request. The dispatcher maps it to a 400 response.
var ErrMalformedRequest = errors.New("malformed request")

// Request is one parsed HTTP request. Exactly one is read per connection.
type Request struct {
	Method    string
	Path      string
	Proto     string
	Headers   map[string]string
	ArrivedAt time.Time
}

// ParseRequest reads the request line and headers from r, up to and including
// the blank line that terminates the header block. The body, if any, is not
// consumed; retrieval requests carry none.
func ParseRequest(r *bufio.Reader) (*Request, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, line)
	}

	method, rawPath, proto := parts[0], parts[1], parts[2]
	if method == "" || !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, line)
	}
	if !strings.HasPrefix(rawPath, "/") {
		return nil, fmt.Errorf("%w: bad request target %q", ErrMalformedRequest, rawPath)
	}

	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: bad path escape in %q", ErrMalformedRequest, rawPath)
	}

	// Query strings are not meaningful for static retrieval.
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}

	req := &Request{
		Method:    method,
		Path:      path,
		Proto:     proto,
		Headers:   make(map[string]string),
		ArrivedAt: time.Now(),
	}

	for i := 0; i < maxHeaderCount; i++ {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return req, nil
		}

		key, value, found := strings.Cut(line, ":")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRequest, line)
		}
		req.Headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return nil, fmt.Errorf("%w: too many header lines", ErrMalformedRequest)
}

// readLine reads one CRLF- or LF-terminated line without the terminator.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder

	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > maxLineLength {
			return "", fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedRequest, maxLineLength)
		}
		if !isPrefix {
			return sb.String(), nil
		}
	}
}
