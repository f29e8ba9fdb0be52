// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package httpx provides a simpler http.Client abstraction and derivative uses.
package httpx

import (
	"net/http"
	"time"
)

// BasicClient is a simpler http.Client that only requires a Do method.
type BasicClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ BasicClient = http.DefaultClient

// WithUserAgent is a basic HTTP client that adds a User-Agent header.
type WithUserAgent struct {
	BasicClient
	UserAgent string
}

var _ BasicClient = &WithUserAgent{}

// Do adds the User-Agent header and sends the request.
func (c *WithUserAgent) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.UserAgent)
	return c.BasicClient.Do(req)
}

// RateLimitedClient throttles outgoing requests to at most one per tick,
// used by the forge clients (internal/forge) to stay under each provider's
// API rate limit during repository enumeration.
type RateLimitedClient struct {
	BasicClient
	Ticker *time.Ticker
}

var _ BasicClient = &RateLimitedClient{}

func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	<-c.Ticker.C // Wait for next tick
	return c.BasicClient.Do(req)
}
