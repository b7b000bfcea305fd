// Package extract pulls the human readable title out of HTML documents.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// NoTitle is returned in place of a title when none can be produced.
const NoTitle = "no title"

var htmlMediaTypes = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
	"application/html":      {},
}

// IsHTML reports whether a Content-Type header value names an HTML media type.
// An empty value is not HTML.
func IsHTML(contentType string) bool {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Lenient fallback for headers like "text/html;;charset".
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	_, ok := htmlMediaTypes[mediaType]
	return ok
}

// Title parses body as HTML and returns the normalized text of the first
// title element anywhere in the document. contentType is used only to pick
// the character set; the body is sniffed when it declares none.
// The boolean result is false when the document has no title element.
func Title(body []byte, contentType string) (string, bool, error) {
	reader, err := utf8Reader(body, contentType)
	if err != nil {
		return "", false, err
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", false, fmt.Errorf("parse html: %w", err)
	}
	first := doc.Find("title").First()
	if first.Length() == 0 {
		return "", false, nil
	}
	return Normalize(first.Text()), true, nil
}

// Normalize applies the relay's title cleanup: surrounding whitespace is
// trimmed, the first newline is dropped, and every non-overlapping run of two
// spaces is removed.
func Normalize(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Replace(title, "\n", "", 1)
	return strings.ReplaceAll(title, "  ", "")
}

func utf8Reader(body []byte, contentType string) (io.Reader, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("charset reader: %w", err)
	}
	return r, nil
}
