// Package types holds the JSON messages exchanged between the host and guest
// request handlers.
package types

import "net/url"

// RequestParams describes an HTTP request forwarded to a guest handler.
// Profile is the database profile of the authenticated caller.
type RequestParams struct {
	Path     string
	RawQuery string
	Body     string
	Profile  string
}

// Response is written back by the guest.
type Response struct {
	Body    string
	Status  int
	Headers map[string]string
}

func (params RequestParams) Query() url.Values {
	v, _ := url.ParseQuery(params.RawQuery)
	return v
}
