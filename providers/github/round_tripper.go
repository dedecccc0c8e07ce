package github

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

const mediaTypeV3 = "application/vnd.github.v3+json"

// headerTransport pins the v3 media type on every request and logs each exchange.
type headerTransport struct {
	next http.RoundTripper
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	req := r.Clone(r.Context())
	req.Header.Set("Accept", mediaTypeV3)

	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("GitHub request failed")
		return nil, err
	}

	log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status", resp.StatusCode).Msg("GitHub request")
	return resp, nil
}
