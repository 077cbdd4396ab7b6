package server

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webfsd/webfsd/internal/counter"
	"github.com/webfsd/webfsd/internal/ratelimiter"
	"github.com/webfsd/webfsd/internal/resolver"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRoot builds the served tree used by the end-to-end tests.
func newTestRoot(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "content")
	require.NoError(t, os.Mkdir(root, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>home</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image1.png"), []byte("\x89PNG fake image data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.pdf"), []byte("%PDF-1.4 fake"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.bin"), []byte{0x00, 0x01, 0x02}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "notes.html"), []byte("<html>notes</html>"), 0o644))

	// A sibling outside the root that must never be served.
	require.NoError(t, os.WriteFile(filepath.Join(base, "secret.txt"), []byte("top secret"), 0o600))

	return root
}

// startTestServer runs a server on an ephemeral port and returns its address.
func startTestServer(t *testing.T, limiter ratelimiter.Limiter) (*Server, string) {
	t.Helper()

	res, err := resolver.New(newTestRoot(t))
	require.NoError(t, err)

	srv := New(Config{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: 5 * time.Second,
	}, res, limiter, counter.NewRegistry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})

	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond, "server did not bind")

	return srv, srv.Addr()
}

type response struct {
	status  int
	headers map[string]string
	body    string
}

// doRaw writes raw bytes on a fresh connection and reads until the server
// closes it, per the one-request-per-connection contract.
func doRaw(t *testing.T, addr, raw string) response {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, raw)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	data, err := io.ReadAll(conn)
	require.NoError(t, err)

	return parseResponse(t, string(data))
}

func doGet(t *testing.T, addr, path string) response {
	t.Helper()
	return doRaw(t, addr, "GET "+path+" HTTP/1.1\r\nHost: test\r\n\r\n")
}

func parseResponse(t *testing.T, raw string) response {
	t.Helper()

	head, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found, "response must contain a complete header block: %q", raw)

	lines := strings.Split(head, "\r\n")
	statusParts := strings.SplitN(lines[0], " ", 3)
	require.Len(t, statusParts, 3, "bad status line: %q", lines[0])
	status, err := strconv.Atoi(statusParts[1])
	require.NoError(t, err)

	headers := make(map[string]string)
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		require.True(t, ok, "bad header line: %q", line)
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return response{status: status, headers: headers, body: body}
}

// ============================================================================
// End-to-End Tests
// ============================================================================

func TestServeFiles(t *testing.T) {
	_, addr := startTestServer(t, nil)

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
	}{
		{"html", "/index.html", "text/html", "<html>home</html>"},
		{"png", "/image1.png", "image/png", "\x89PNG fake image data"},
		{"pdf", "/report.pdf", "application/pdf", "%PDF-1.4 fake"},
		{"unknown extension", "/data.bin", "application/octet-stream", "\x00\x01\x02"},
		{"nested", "/docs/notes.html", "text/html", "<html>notes</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGet(t, addr, tt.path)

			assert.Equal(t, 200, resp.status)
			assert.Equal(t, tt.contentType, resp.headers["content-type"])
			assert.Equal(t, strconv.Itoa(len(tt.body)), resp.headers["content-length"])
			assert.Equal(t, tt.body, resp.body)
		})
	}
}

func TestNotFound(t *testing.T) {
	_, addr := startTestServer(t, nil)

	resp := doGet(t, addr, "/missing.html")
	assert.Equal(t, 404, resp.status)
	assert.Contains(t, resp.body, "missing.html")
}

func TestTraversalIsRejected(t *testing.T) {
	_, addr := startTestServer(t, nil)

	for _, path := range []string{"/../secret.txt", "/../../etc/passwd", "/docs/../../secret.txt"} {
		resp := doGet(t, addr, path)
		assert.Equal(t, 404, resp.status, "path %s", path)
		assert.NotContains(t, resp.body, "top secret", "path %s must not leak content", path)
	}
}

func TestBadRequests(t *testing.T) {
	_, addr := startTestServer(t, nil)

	t.Run("NonGetMethod", func(t *testing.T) {
		resp := doRaw(t, addr, "POST /index.html HTTP/1.1\r\nHost: test\r\n\r\n")
		assert.Equal(t, 400, resp.status)
	})

	t.Run("MalformedRequestLine", func(t *testing.T) {
		resp := doRaw(t, addr, "GARBAGE\r\n\r\n")
		assert.Equal(t, 400, resp.status)
	})

	t.Run("ServerSurvivesMalformedInput", func(t *testing.T) {
		_ = doRaw(t, addr, "\x00\x01 junk\r\n\r\n")

		resp := doGet(t, addr, "/index.html")
		assert.Equal(t, 200, resp.status, "a bad connection must not affect later ones")
	})
}

func TestDirectoryListing(t *testing.T) {
	srv, addr := startTestServer(t, nil)

	t.Run("RootListing", func(t *testing.T) {
		resp := doGet(t, addr, "/")

		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "text/html", resp.headers["content-type"])
		assert.Equal(t, strconv.Itoa(len(resp.body)), resp.headers["content-length"])
		assert.Contains(t, resp.body, `<a href="/docs/">docs/</a>`)
		assert.Contains(t, resp.body, `<a href="/index.html">index.html</a>`)
		assert.NotContains(t, resp.body, "[Parent Directory]")
	})

	t.Run("SubdirectoryHasParentLink", func(t *testing.T) {
		resp := doGet(t, addr, "/docs")

		assert.Equal(t, 200, resp.status)
		assert.Contains(t, resp.body, "[Parent Directory]")
		assert.Contains(t, resp.body, "notes.html")
	})

	t.Run("ListingsAreNotCounted", func(t *testing.T) {
		before := srv.Counters().Total()
		_ = doGet(t, addr, "/docs")
		assert.Equal(t, before, srv.Counters().Total(), "directory listings must not increment counters")
	})

	t.Run("ListingAnnotatesHitCounts", func(t *testing.T) {
		_ = doGet(t, addr, "/image1.png")
		_ = doGet(t, addr, "/image1.png")

		resp := doGet(t, addr, "/")
		assert.Contains(t, resp.body, "2 requests")
	})
}

func TestRateLimiting(t *testing.T) {
	t.Run("OverBudgetGets429", func(t *testing.T) {
		_, addr := startTestServer(t, ratelimiter.NewSlidingLog(2, time.Minute))

		assert.Equal(t, 200, doGet(t, addr, "/index.html").status)
		assert.Equal(t, 200, doGet(t, addr, "/index.html").status)

		resp := doGet(t, addr, "/index.html")
		assert.Equal(t, 429, resp.status)
		assert.Equal(t, "1", resp.headers["retry-after"])
	})

	t.Run("RejectedRequestsAreNotCounted", func(t *testing.T) {
		srv, addr := startTestServer(t, ratelimiter.NewSlidingLog(1, time.Minute))

		require.Equal(t, 200, doGet(t, addr, "/image1.png").status)
		require.Equal(t, 429, doGet(t, addr, "/image1.png").status)

		assert.Equal(t, uint64(1), srv.Counters().Count("/image1.png"),
			"rate-limited requests must not increment hit counters")
	})

	t.Run("ConcurrentBurstAdmitsExactlyTheCeiling", func(t *testing.T) {
		const (
			ceiling  = 5
			requests = 10
		)
		_, addr := startTestServer(t, ratelimiter.NewSlidingLog(ceiling, time.Minute))

		statuses := make([]int, requests)
		var wg sync.WaitGroup
		for i := 0; i < requests; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				statuses[i] = doGetQuiet(addr, "/image1.png")
			}(i)
		}
		wg.Wait()

		ok, limited := 0, 0
		for _, status := range statuses {
			switch status {
			case 200:
				ok++
			case 429:
				limited++
			}
		}
		assert.Equal(t, ceiling, ok, "exactly the ceiling succeed")
		assert.Equal(t, requests-ceiling, limited, "the rest are rate limited")
	})
}

// TestConcurrentCounting is the lost-update check end to end: K concurrent
// successful GETs to one path must count exactly K.
func TestConcurrentCounting(t *testing.T) {
	const workers = 50

	srv, addr := startTestServer(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := doGetQuiet(addr, "/image1.png")
			assert.Equal(t, 200, status)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers), srv.Counters().Count("/image1.png"))
}

// doGetQuiet is doGet without test assertions, safe to call from goroutines
// that only need the status code.
func doGetQuiet(addr, path string) int {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return -1
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, "GET "+path+" HTTP/1.1\r\nHost: test\r\n\r\n"); err != nil {
		return -1
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(conn)
	if err != nil {
		return -1
	}

	parts := strings.SplitN(string(data), " ", 3)
	if len(parts) < 2 {
		return -1
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	return status
}

func TestGracefulShutdown(t *testing.T) {
	res, err := resolver.New(newTestRoot(t))
	require.NoError(t, err)

	srv := New(Config{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: 2 * time.Second,
	}, res, nil, counter.NewRegistry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
