package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// DefaultBrotliMinLength is the body size below which responses go out
// uncompressed.
const DefaultBrotliMinLength = 1024

// brotliWriter holds the body back until it is known to be large enough to
// compress, then switches to a brotli stream for the rest of the response.
type brotliWriter struct {
	gin.ResponseWriter
	quality   int
	minLength int
	pending   []byte
	enc       *brotli.Writer
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.enc != nil {
		return bw.enc.Write(data)
	}

	bw.pending = append(bw.pending, data...)
	if len(bw.pending) < bw.minLength {
		return len(data), nil
	}

	h := bw.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	bw.enc = brotli.NewWriterLevel(bw.ResponseWriter, bw.quality)
	if _, err := bw.enc.Write(bw.pending); err != nil {
		return 0, err
	}
	bw.pending = nil
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// finish writes a short body as-is or closes the brotli stream.
func (bw *brotliWriter) finish() error {
	if bw.enc != nil {
		return bw.enc.Close()
	}
	if len(bw.pending) == 0 {
		return nil
	}
	_, err := bw.ResponseWriter.Write(bw.pending)
	return err
}

// Brotli compresses JSON responses for clients that accept br. WebSocket
// upgrades are passed through untouched.
func Brotli(quality, minLength int) gin.HandlerFunc {
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		quality = brotli.DefaultCompression
	}
	if minLength <= 0 {
		minLength = DefaultBrotliMinLength
	}

	return func(c *gin.Context) {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{ResponseWriter: c.Writer, quality: quality, minLength: minLength}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
