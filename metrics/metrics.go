// Package metrics posts usage events to an external metrics collector.
// Posting is fire-and-forget: a slow or absent collector never delays or
// fails the request that triggered the event.
package metrics

import (
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

// Sink receives usage events.
type Sink interface {
	Post(event string, params map[string]string, token string)
}

// Noop discards every event. Used when no metrics host is configured.
type Noop struct{}

func (Noop) Post(string, map[string]string, string) {}

// HTTPSink posts events as GET requests against a metrics collector:
// {host}/user/{service}/{event}?params with the session token forwarded on
// a header.
type HTTPSink struct {
	host    string
	service string
	client  *fasthttp.Client
}

const tokenHeader = "x-userapi-session-token"

// NewHTTPSink builds a sink for the given collector host and service name.
func NewHTTPSink(host, service string) *HTTPSink {
	return &HTTPSink{
		host:    host,
		service: service,
		client: &fasthttp.Client{
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		},
	}
}

// Post dispatches the event in the background. Failures are swallowed;
// metrics loss is acceptable, request latency is not.
func (s *HTTPSink) Post(event string, params map[string]string, token string) {
	uri := s.host + "/user/" + url.PathEscape(s.service) + "/" + url.PathEscape(event)

	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(fasthttp.MethodGet)
		if token != "" {
			req.Header.Set(tokenHeader, token)
		}
		for k, v := range params {
			req.URI().QueryArgs().Set(k, v)
		}

		_ = s.client.DoTimeout(req, resp, 5*time.Second)
	}()
}
