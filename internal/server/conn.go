package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	httpwire "github.com/webfsd/webfsd/internal/protocol/http"
	"github.com/webfsd/webfsd/internal/logger"
	"github.com/webfsd/webfsd/internal/resolver"
)

// conn handles one accepted connection: parse one request, run the pipeline,
// write one response, close.
type conn struct {
	server *Server
	conn   net.Conn
}

// serve runs the connection to completion. Panic recovery keeps a
// misbehaving request from taking down the accept loop or any other
// connection.
func (c *conn) serve(ctx context.Context) {
	defer c.server.releaseConn()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic handling connection from %s: %v",
				c.conn.RemoteAddr(), r)
		}
		_ = c.conn.Close()
	}()

	select {
	case <-ctx.Done():
		return
	default:
	}

	clientAddr := c.conn.RemoteAddr().String()
	logger.Debug("New connection from %s", clientAddr)

	if c.server.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			logger.Warn("Failed to set read deadline for %s: %v", clientAddr, err)
		}
	}

	start := time.Now()
	status, err := c.handleRequest()
	if err != nil {
		if err == io.EOF {
			logger.Debug("Connection from %s closed by client", clientAddr)
		} else {
			logger.Debug("Error serving %s: %v", clientAddr, err)
		}
	}
	if status > 0 {
		c.server.metrics.RecordRequest(status, time.Since(start))
	}
}

// handleRequest parses the request and drives it through the pipeline:
// rate-check, resolve, count, respond. It returns the response status that
// was written (0 if none) and any terminal connection error.
func (c *conn) handleRequest() (int, error) {
	req, err := httpwire.ParseRequest(bufio.NewReader(c.conn))
	if err != nil {
		if err == io.EOF {
			return 0, err
		}
		// Malformed input gets a response, not a crash.
		return httpwire.StatusBadRequest,
			httpwire.WriteError(c.conn, httpwire.StatusBadRequest, "Malformed request.")
	}

	clientIP := c.clientIP()
	logger.Debug("Request from %s: %s %s", clientIP, req.Method, req.Path)

	if req.Method != "GET" {
		return httpwire.StatusBadRequest,
			httpwire.WriteError(c.conn, httpwire.StatusBadRequest,
				fmt.Sprintf("Method %q is not supported.", req.Method))
	}

	// Admission runs before any resource work; rejected requests never
	// touch the filesystem.
	if c.server.limiter != nil && !c.server.limiter.Admit(clientIP) {
		logger.Debug("Rate limited: %s", clientIP)
		c.server.metrics.RecordRateLimited()
		return httpwire.StatusTooManyRequests,
			httpwire.WriteError(c.conn, httpwire.StatusTooManyRequests,
				"Rate limit exceeded. Please slow down.")
	}

	res, err := c.server.resolver.Resolve(req.Path)
	if err != nil {
		logger.Warn("Resolve %q failed: %v", req.Path, err)
		return httpwire.StatusInternalServerError,
			httpwire.WriteError(c.conn, httpwire.StatusInternalServerError,
				"Unexpected error resolving the requested resource.")
	}

	switch res.Kind {
	case resolver.KindNotFound:
		return httpwire.StatusNotFound,
			httpwire.WriteError(c.conn, httpwire.StatusNotFound,
				fmt.Sprintf("The resource %q was not found on this server.", res.Path))
	case resolver.KindDirectory:
		return c.serveDirectory(res)
	default:
		return c.serveFile(res)
	}
}

// serveDirectory renders and writes the listing. Listings are not counted as
// resource hits, but their entries are annotated with the hit counts of the
// resources they link to.
func (c *conn) serveDirectory(res *resolver.Resource) (int, error) {
	body := resolver.RenderListing(
		res.Path,
		res.Entries,
		c.server.counters.Count,
		c.server.counters.Total(),
	)

	err := httpwire.Write(c.conn, &httpwire.Response{
		Status:  httpwire.StatusOK,
		Headers: map[string]string{"Content-Type": "text/html"},
		Body:    body,
	})
	if err == nil {
		c.server.metrics.RecordBytesSent(int64(len(body)))
	}
	return httpwire.StatusOK, err
}

// serveFile streams the resolved file with its exact size and MIME type,
// incrementing the resource's hit counter once.
func (c *conn) serveFile(res *resolver.Resource) (int, error) {
	file, err := os.Open(res.FilePath)
	if err != nil {
		// Resolution succeeded but the read failed, e.g. permissions
		// changed between resolve and open.
		logger.Warn("Open %q failed: %v", res.Path, err)
		return httpwire.StatusInternalServerError,
			httpwire.WriteError(c.conn, httpwire.StatusInternalServerError,
				"The resource could not be read.")
	}
	defer file.Close()

	count := c.server.counters.Increment(res.Path)
	logger.Debug("Serving %s (%s, %d bytes), request #%d",
		res.Path, res.ContentType, res.Size, count)

	err = httpwire.Write(c.conn, &httpwire.Response{
		Status:        httpwire.StatusOK,
		Headers:       map[string]string{"Content-Type": res.ContentType},
		BodyReader:    file,
		ContentLength: res.Size,
	})
	if err != nil {
		return httpwire.StatusOK, fmt.Errorf("stream %q: %w", res.Path, err)
	}

	c.server.metrics.RecordBytesSent(res.Size)
	return httpwire.StatusOK, nil
}

// clientIP extracts the IP portion of the peer address. Rate-limit records
// are keyed by IP, not IP:port, so one client's connections share a record.
func (c *conn) clientIP() string {
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return c.conn.RemoteAddr().String()
	}
	return host
}
