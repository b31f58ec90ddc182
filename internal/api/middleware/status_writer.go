package middleware

import "net/http"

// statusWriter records the status code and body size a handler wrote.
// The logging, tracing, and metrics middleware all observe responses
// through the same wrapper.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func observe(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += int64(n)
	return n, err
}
