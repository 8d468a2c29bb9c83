package mail_service

import (
	"net/http"
	"time"
)

// bearerTransport injects a static bearer token into every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// NewStaticTokenClient returns an HTTP client that authenticates with a
// pre-acquired OAuth access token. Token acquisition and refresh happen
// outside this process.
func NewStaticTokenClient(token string) *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &bearerTransport{
			token: token,
			base:  http.DefaultTransport,
		},
	}
}
