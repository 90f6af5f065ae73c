package main

import (
	"log"
	"net/http"
	"strconv"
	"time"
)

// statusWriter proxies http.ResponseWriter and records the response
// status and length for the access log.
type statusWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (length int, err error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	length, err = w.ResponseWriter.Write(b)
	w.length += length
	return
}

// HttpLog wraps a handler with access logging.
func HttpLog(handle http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := statusWriter{w, 0, 0}
		handle.ServeHTTP(&writer, r)
		latency := time.Since(start)

		log.Printf("%s %s \"%s %s %s\" %d %d %s %dms",
			start.Format("2006/01/02 15:04:05"),
			r.RemoteAddr,
			r.Method,
			r.URL.String(),
			r.Proto,
			writer.status,
			writer.length,
			strconv.Quote(r.Header.Get("User-Agent")),
			latency.Milliseconds())
	}
}
