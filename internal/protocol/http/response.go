package http

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Response describes one HTTP response to serialize onto a connection.
//
// Content-Length is always derived from the body source: Body length for
// in-memory bodies, ContentLength for streamed ones. The header block is
// assembled in full before anything is written, so a peer never observes a
// partially written set of headers.
type Response struct {
	Status  int
	Headers map[string]string

	// Body is an in-memory payload. Used when BodyReader is nil.
	Body []byte

	// BodyReader streams exactly ContentLength bytes. Takes precedence over
	// Body when non-nil.
	BodyReader    io.Reader
	ContentLength int64
}

// Write serializes the status line, headers and body to w. Any error is
// terminal for the connection the caller owns; nothing is retried.
func Write(w io.Writer, resp *Response) error {
	length := resp.ContentLength
	if resp.BodyReader == nil {
		length = int64(len(resp.Body))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", resp.Status, StatusText(resp.Status))

	// Deterministic header order keeps responses reproducible for tests.
	keys := make([]string, 0, len(resp.Headers))
	for key := range resp.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s: %s\r\n", key, resp.Headers[key])
	}

	fmt.Fprintf(&sb, "Content-Length: %d\r\n", length)
	sb.WriteString("Connection: close\r\n")
	sb.WriteString("\r\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write header block: %w", err)
	}

	if resp.BodyReader != nil {
		written, err := io.CopyN(w, resp.BodyReader, length)
		if err != nil {
			return fmt.Errorf("write body after %d/%d bytes: %w", written, length, err)
		}
		return nil
	}

	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}

	return nil
}

// WriteError emits a minimal HTML error response for the given status.
func WriteError(w io.Writer, status int, detail string) error {
	body := fmt.Sprintf(
		"<html><body><h1>%d %s</h1><p>%s</p></body></html>",
		status, StatusText(status), detail,
	)

	headers := map[string]string{"Content-Type": "text/html"}
	if status == StatusTooManyRequests {
		headers["Retry-After"] = "1"
	}

	return Write(w, &Response{
		Status:  status,
		Headers: headers,
		Body:    []byte(body),
	})
}
