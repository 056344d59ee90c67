/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package broker is the typed facade over the broker's HTTPS REST contract:
// a resty.Client with a restricted TLS profile, bearer-token auth, and
// centralized error-envelope decoding, in the shape of
// access/pagerduty/bot.go's Bot.
package broker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"

	"github.com/gravitational/uds-actor/internal/backoff"
	"github.com/gravitational/uds-actor/internal/brokererr"
	"github.com/gravitational/uds-actor/internal/certs"
	"github.com/gravitational/uds-actor/internal/consts"
)

// envelope is the shape every broker response follows.
type envelope struct {
	Result  json.RawMessage `json:"result"`
	Stamp   string          `json:"stamp"`
	Version string          `json:"version"`
	Error   *string         `json:"error"`
}

// unmarshalResult decodes env.Result into v.
func (env *envelope) unmarshalResult(v interface{}) error {
	if env == nil || len(env.Result) == 0 {
		return trace.BadParameter("empty broker response")
	}
	return json.Unmarshal(env.Result, v)
}

// Client is a typed HTTPS client for the broker's actor/v3 REST contract.
type Client struct {
	rest       *resty.Client
	token      string
	userAgent  string
	maxConns   int
	httpClient *http.Client

	mu          sync.Mutex
	lastVersion string
}

// Config configures a new Client.
type Config struct {
	// Host is the broker's host:port.
	Host string
	// ValidateCertificate toggles certificate (and hostname) verification.
	ValidateCertificate bool
	// Token is the current bearer token.
	Token string
	// UserAgent identifies this build of the actor.
	UserAgent string
}

// New builds a Client. It never dials anything itself.
func New(cfg Config) *Client {
	tlsConfig := NewTLSConfig(cfg.ValidateCertificate)

	httpClient := &http.Client{
		Timeout: consts.Timeout,
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxConnsPerHost:     4,
			MaxIdleConnsPerHost: 4,
		},
	}

	rest := resty.NewWithClient(httpClient)
	rest.SetHostURL("https://" + cfg.Host + "/uds/rest/")
	rest.SetHeader("Content-Type", "application/json")
	rest.SetHeader("User-Agent", cfg.UserAgent)

	rest.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetResult(&envelope{})
		return nil
	})
	rest.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		env, ok := resp.Result().(*envelope)
		if !ok || env == nil {
			return nil
		}
		if env.Error != nil && *env.Error != "" {
			return brokererr.Errorf(brokererr.Broker, "broker error: %s", *env.Error)
		}
		return nil
	})

	return &Client{rest: rest, token: cfg.Token, userAgent: cfg.UserAgent}
}

// NewTLSConfig builds the TLS profile every broker call enforces: minimum
// TLS 1.2, an AEAD/ECDHE cipher allow-list, and verification toggled by
// validateCertificate (hostname verification is disabled along with it).
func NewTLSConfig(validateCertificate bool) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		},
		InsecureSkipVerify: !validateCertificate,
	}
}

// SetToken updates the bearer token every subsequent call embeds in its
// request body.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	return c.rest.NewRequest().SetContext(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body map[string]interface{}) (*envelope, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	body["token"] = c.token

	req := c.newRequest(ctx).SetBody(body)

	var resp *resty.Response
	var err error
	switch method {
	case http.MethodGet:
		resp, err = req.Get(path)
	default:
		resp, err = req.Post(path)
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	if httpErr := brokererr.FromHTTP(err, status); httpErr != nil {
		return nil, httpErr
	}
	if err != nil {
		return nil, err // already categorized by the OnAfterResponse middleware
	}

	env, _ := resp.Result().(*envelope)
	if env != nil && env.Version != "" {
		c.mu.Lock()
		c.lastVersion = env.Version
		c.mu.Unlock()
	}
	return env, nil
}

// LastVersion returns the broker version reported by the most recent
// response's `version` field, or "" if no call has succeeded yet.
func (c *Client) LastVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastVersion
}

// withRetry runs fn up to retries+1 times, sleeping per a Sequence backoff
// between attempts, retrying only on the connection-error category.
func (c *Client) withRetry(ctx context.Context, retries int, fn func() error) error {
	seq := backoff.NewSequence(consts.RetryInitialDelay, consts.RetryDelayCapFactor)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !brokererr.IsConnection(lastErr) {
			return lastErr
		}
		if attempt == retries {
			break
		}
		if err := seq.Do(ctx); err != nil {
			return trace.Wrap(err)
		}
	}
	return lastErr
}

// certInfoFromEnvelope is shared by Ready/Unmanaged to lift the broker's
// certificate fields out of an envelope's result.
func certInfoFromEnvelope(env *envelope) (certs.Info, error) {
	var info certs.Info
	if err := env.unmarshalResult(&info); err != nil {
		return certs.Info{}, trace.Wrap(err)
	}
	return info, nil
}
