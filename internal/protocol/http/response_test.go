package http

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "OK", StatusText(200))
	assert.Equal(t, "Bad Request", StatusText(400))
	assert.Equal(t, "Not Found", StatusText(404))
	assert.Equal(t, "Too Many Requests", StatusText(429))
	assert.Equal(t, "Internal Server Error", StatusText(500))
	assert.Equal(t, "Unknown", StatusText(418))
}

func TestWrite(t *testing.T) {
	t.Run("SerializesStatusLineHeadersAndBody", func(t *testing.T) {
		var buf bytes.Buffer
		err := Write(&buf, &Response{
			Status:  StatusOK,
			Headers: map[string]string{"Content-Type": "text/html"},
			Body:    []byte("<html>hi</html>"),
		})
		require.NoError(t, err)

		raw := buf.String()
		head, body, found := strings.Cut(raw, "\r\n\r\n")
		require.True(t, found, "header block must end with a blank line")

		lines := strings.Split(head, "\r\n")
		assert.Equal(t, "HTTP/1.1 200 OK", lines[0])
		assert.Contains(t, lines, "Content-Type: text/html")
		assert.Contains(t, lines, "Content-Length: 15")
		assert.Contains(t, lines, "Connection: close")
		assert.Equal(t, "<html>hi</html>", body)
	})

	t.Run("ContentLengthMatchesBodyExactly", func(t *testing.T) {
		var buf bytes.Buffer
		body := bytes.Repeat([]byte{0xAB}, 4096)
		err := Write(&buf, &Response{Status: StatusOK, Body: body})
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "Content-Length: 4096")
	})

	t.Run("StreamsBodyReaderWithDeclaredLength", func(t *testing.T) {
		var buf bytes.Buffer
		payload := "streamed file content"
		err := Write(&buf, &Response{
			Status:        StatusOK,
			Headers:       map[string]string{"Content-Type": "application/pdf"},
			BodyReader:    strings.NewReader(payload),
			ContentLength: int64(len(payload)),
		})
		require.NoError(t, err)

		raw := buf.String()
		assert.Contains(t, raw, "Content-Length: 21")
		assert.True(t, strings.HasSuffix(raw, payload))
	})

	t.Run("ShortBodyReaderIsAnError", func(t *testing.T) {
		var buf bytes.Buffer
		err := Write(&buf, &Response{
			Status:        StatusOK,
			BodyReader:    strings.NewReader("short"),
			ContentLength: 100,
		})
		assert.Error(t, err)
	})

	t.Run("EmptyBodyHasZeroContentLength", func(t *testing.T) {
		var buf bytes.Buffer
		err := Write(&buf, &Response{Status: StatusNotFound})
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "Content-Length: 0")
	})
}

func TestWriteError(t *testing.T) {
	t.Run("EmitsHTMLBody", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteError(&buf, StatusNotFound, "The file was not found."))

		raw := buf.String()
		assert.Contains(t, raw, "HTTP/1.1 404 Not Found")
		assert.Contains(t, raw, "Content-Type: text/html")
		assert.Contains(t, raw, "<h1>404 Not Found</h1>")
		assert.Contains(t, raw, "The file was not found.")
	})

	t.Run("RateLimitedCarriesRetryAfter", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteError(&buf, StatusTooManyRequests, "Slow down."))

		assert.Contains(t, buf.String(), "Retry-After: 1")
	})

	t.Run("OtherStatusesOmitRetryAfter", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteError(&buf, StatusBadRequest, "Bad."))

		assert.NotContains(t, buf.String(), "Retry-After")
	})
}
