package fetch

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrPayloadTooLarge aborts a read once the body would exceed the configured cap.
	ErrPayloadTooLarge = errors.New("response entity too large")
	// ErrInvalidLocation reports a redirect whose Location header cannot be parsed.
	ErrInvalidLocation = errors.New("invalid redirect location")
)

// UnsupportedSchemeError is returned when a URL, usually a redirect target,
// uses a scheme other than http or https.
type UnsupportedSchemeError struct {
	Scheme string
	URL    string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported scheme %q in %s", e.Scheme, e.URL)
}

// IsDNSNotFound reports whether err was caused by a host that does not resolve.
func IsDNSNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
