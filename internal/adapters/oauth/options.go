package oauth

import "net/http"

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

func WithAPIBase(u string) Option {
	return func(c *Client) { c.apiBase = u }
}
