package actions

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/http"
)

// Response wraps the host's ResponseWriter and tracks what has been sent.
type Response struct {
	w       http.ResponseWriter
	status  int
	started bool
	written int64
	capture *bytes.Buffer
}

// NewResponse wraps w.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Header implements http.ResponseWriter.
func (r *Response) Header() http.Header { return r.w.Header() }

// WriteHeader implements http.ResponseWriter. Only the first call takes
// effect.
func (r *Response) WriteHeader(code int) {
	if r.started {
		return
	}
	r.status = code
	r.started = true
	r.w.WriteHeader(code)
}

// Write implements http.ResponseWriter.
func (r *Response) Write(b []byte) (int, error) {
	if !r.started {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.w.Write(b)
	r.written += int64(n)
	if r.capture != nil && n > 0 {
		r.capture.Write(b[:n])
	}
	return n, err
}

// Status returns the status sent, or 200 when nothing was sent yet.
func (r *Response) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// HasStarted reports whether headers have been sent.
func (r *Response) HasStarted() bool { return r.started }

// Written returns the number of body bytes written.
func (r *Response) Written() int64 { return r.written }

// StartCapture begins copying body writes into a buffer.
func (r *Response) StartCapture() {
	r.capture = &bytes.Buffer{}
}

// StopCapture ends capturing and returns the captured body.
func (r *Response) StopCapture() []byte {
	if r.capture == nil {
		return nil
	}
	b := r.capture.Bytes()
	r.capture = nil
	return b
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (r *Response) Unwrap() http.ResponseWriter { return r.w }

// Flush implements http.Flusher when the wrapped writer does.
func (r *Response) Flush() {
	if f, ok := r.w.(http.Flusher); ok {
		if !r.started {
			r.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Hijack implements http.Hijacker when the wrapped writer does.
func (r *Response) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.w.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}
