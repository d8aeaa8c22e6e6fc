package upload

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
)

// Form is a streamed multipart body. Unlike a bare multipart.Reader it tells a body that
// reached its closing delimiter from one that was cut off between parts.
type Form struct {
	parts *multipart.Reader
	body  *closingReader
}

func NewForm(body io.Reader, boundary string) *Form {
	cr := newClosingReader(body, boundary)
	return &Form{
		parts: multipart.NewReader(cr, boundary),
		body:  cr,
	}
}

// FormFromRequest reads the boundary off a multipart/form-data or multipart/mixed request
func FormFromRequest(r *http.Request) (*Form, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return nil, http.ErrNotMultipart
	}
	if r.Body == nil {
		return nil, errors.New("missing form body")
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || (mediaType != "multipart/form-data" && mediaType != "multipart/mixed") {
		return nil, http.ErrNotMultipart
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, http.ErrMissingBoundary
	}
	return NewForm(r.Body, boundary), nil
}

// nextPart returns io.EOF only once the closing delimiter was read.
// multipart.Reader also reports a body cut inside part headers as a bare io.EOF.
func (f *Form) nextPart() (*multipart.Part, error) {
	part, err := f.parts.NextPart()
	if err == io.EOF && !f.body.closed {
		return nil, io.ErrUnexpectedEOF
	}
	return part, err
}

// partFileName is the filename parameter exactly as the client sent it.
// multipart.Part.FileName strips directories.
func partFileName(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

// ===================================================================================================

// closingReader passes the body through and records whether the closing delimiter went by
type closingReader struct {
	r      io.Reader
	delim  []byte
	tail   []byte
	closed bool
}

func newClosingReader(r io.Reader, boundary string) *closingReader {
	delim := []byte("\n--" + boundary + "--")
	tail := make([]byte, 0, 2*len(delim))
	// a body may open with the closing delimiter
	tail = append(tail, '\n')
	return &closingReader{r: r, delim: delim, tail: tail}
}

func (c *closingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && !c.closed {
		c.scan(p[:n])
	}
	return n, err
}

func (c *closingReader) scan(p []byte) {
	keep := len(c.delim) - 1

	head := p
	if len(head) > keep {
		head = head[:keep]
	}
	joined := append(c.tail, head...)
	if bytes.Contains(joined, c.delim) || bytes.Contains(p, c.delim) {
		c.closed = true
		return
	}

	if len(p) >= keep {
		c.tail = append(c.tail[:0], p[len(p)-keep:]...)
		return
	}
	if len(joined) > keep {
		joined = joined[len(joined)-keep:]
	}
	c.tail = append(c.tail[:0], joined...)
}
