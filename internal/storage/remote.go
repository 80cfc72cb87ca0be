package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/ignite/climblog/internal/pkg/httpretry"
)

var ErrRemoteStatus = errors.New("remote export returned an error status")

// RemoteFetcher downloads exports that platforms publish at a URL, such as a
// Mountain Project tick export link.
type RemoteFetcher struct {
	client   httpretry.HTTPDoer
	maxBytes int64
}

// NewRemoteFetcher wraps client. maxBytes <= 0 disables the size check.
func NewRemoteFetcher(client httpretry.HTTPDoer, maxBytes int64) *RemoteFetcher {
	return &RemoteFetcher{client: client, maxBytes: maxBytes}
}

// Fetch downloads rawURL. Only http and https URLs are accepted.
func (f *RemoteFetcher) Fetch(ctx context.Context, rawURL string) (*Object, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid export url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv, application/json;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %d", ErrRemoteStatus, u.Host, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading export body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrObjectTooLarge, u.Host)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}
	return &Object{Key: name, ContentType: resp.Header.Get("Content-Type"), Body: data}, nil
}
