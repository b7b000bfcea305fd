package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/title-relay/internal/fetch"
)

// ErrBadTarget marks inbound paths that do not name a fetchable URL.
var ErrBadTarget = errors.New("bad relay target")

// Scheme prefixes accepted on inbound paths. The second slash of "://" is
// omitted by convention: /https/example.com/page.
var schemePrefixes = []struct {
	prefix string
	scheme string
}{
	{"http/", "http"},
	{"https/", "https"},
}

// Request is a parsed relay path.
type Request struct {
	// Raw is the reconstructed absolute URL, exactly as the client spelled it.
	Raw    string
	Target fetch.Target
}

// ParseTarget turns an inbound request URI, leading slash removed, into a
// Request. Everything after the scheme segment, query included, is carried
// over byte for byte.
func ParseTarget(path string) (Request, error) {
	var scheme, rest string
	for _, p := range schemePrefixes {
		if strings.HasPrefix(path, p.prefix) {
			scheme, rest = p.scheme, path[len(p.prefix):]
			break
		}
	}
	if scheme == "" {
		return Request{}, fmt.Errorf("%w: path must start with http/ or https/", ErrBadTarget)
	}

	raw := scheme + "://" + rest
	u, err := url.Parse(raw)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrBadTarget, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return Request{}, fmt.Errorf("%w: %q has no host", ErrBadTarget, raw)
	}
	if u.User != nil {
		return Request{}, fmt.Errorf("%w: credentials are not relayed", ErrBadTarget)
	}
	return Request{Raw: raw, Target: fetch.TargetFromURL(u)}, nil
}
