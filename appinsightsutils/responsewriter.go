package appinsightsutils

import "net/http"

// ResponseWriterWithStatusCode is a wrapper around http.ResponseWriter that captures the status code
// and the number of body bytes written
type ResponseWriterWithStatusCode struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func NewResponseWriterWithStatusCode(w http.ResponseWriter) *ResponseWriterWithStatusCode {
	return &ResponseWriterWithStatusCode{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *ResponseWriterWithStatusCode) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ResponseWriterWithStatusCode) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *ResponseWriterWithStatusCode) StatusCode() int {
	return w.statusCode
}

func (w *ResponseWriterWithStatusCode) BytesWritten() int {
	return w.bytesWritten
}
