package datasource

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned by transports when a resource does not exist.
var ErrNotFound = eris.New("resource not found")

// Transport fetches the raw bytes of a resolved location.
type Transport interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// LocalTransport is implemented by transports backed by the file system.
// Formats that need random access, such as shapefiles, require one.
type LocalTransport interface {
	Transport
	LocalPath(location string) (string, error)
}

// HTTPOptions configures HTTPTransport.
type HTTPOptions struct {
	UserAgent string
	// Timeout bounds each request. Zero leaves requests unbounded.
	Timeout time.Duration
	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	Burst     int
	Client    *http.Client
}

// HTTPTransport fetches resources over HTTP.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
	ua      string
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "riskmap/1.0"
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &HTTPTransport{client: client, limiter: limiter, ua: opts.UserAgent}
}

// Fetch issues a GET request. Statuses outside 2xx are errors; 404 wraps
// ErrNotFound.
func (t *HTTPTransport) Fetch(ctx context.Context, location string) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", t.ua)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "get %s", location)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, eris.Wrapf(ErrNotFound, "get %s", location)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("http %d from %s", resp.StatusCode, location)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "read body of %s", location)
	}
	return body, nil
}

// DirTransport serves resources from a local directory. Locations are
// slash-separated paths relative to Root and cannot escape it.
type DirTransport struct {
	Root string
}

// NewDirTransport creates a directory transport rooted at root.
func NewDirTransport(root string) *DirTransport {
	return &DirTransport{Root: root}
}

// LocalPath maps a location onto the file system.
func (t *DirTransport) LocalPath(location string) (string, error) {
	if IsAbsoluteURL(location) {
		return "", eris.Errorf("directory source cannot fetch %s", location)
	}
	clean := path.Clean("/" + location)
	return filepath.Join(t.Root, filepath.FromSlash(clean)), nil
}

// Fetch reads the file at location.
func (t *DirTransport) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "read file")
	}
	p, err := t.LocalPath(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "read %s", p)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", p)
	}
	return data, nil
}
