package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Verdict is the tri-state answer of an external validator.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictDisposable
	VerdictNotDisposable
)

func (v Verdict) String() string {
	switch v {
	case VerdictDisposable:
		return "disposable"
	case VerdictNotDisposable:
		return "not_disposable"
	default:
		return "unknown"
	}
}

// Validator decides whether a domain is disposable. Failures are reported as
// VerdictUnknown, never as errors.
type Validator interface {
	Lookup(ctx context.Context, domain string) Verdict
}

const DefaultWhoisXMLEndpoint = "https://emailverification.whoisxmlapi.com/api/v1"

// WhoisXMLClient queries a WhoisXML-style email verification API.
type WhoisXMLClient struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
	Logger   logrus.FieldLogger
}

func NewWhoisXMLClient(apiKey, endpoint string, timeout time.Duration, logger logrus.FieldLogger) *WhoisXMLClient {
	if endpoint == "" {
		endpoint = DefaultWhoisXMLEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WhoisXMLClient{
		APIKey:   apiKey,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
		Logger:   logger.WithField("component", "whoisxml"),
	}
}

type whoisXMLResponse struct {
	Disposable      flexBool `json:"disposable"`
	DisposableCheck flexBool `json:"disposableCheck"`
}

// flexBool accepts JSON booleans as well as "true"/"false" strings.
type flexBool struct {
	set   bool
	value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("not a boolean: %s", data)
	}
	b.set, b.value = true, v
	return nil
}

func (c *WhoisXMLClient) Lookup(ctx context.Context, domain string) Verdict {
	verdict, err := c.lookup(ctx, NormalizeDomain(domain))
	if err != nil {
		c.Logger.WithFields(logrus.Fields{
			"domain": domain,
			"error":  err.Error(),
		}).Warn("External validation failed, verdict unknown")
		return VerdictUnknown
	}
	return verdict
}

func (c *WhoisXMLClient) lookup(ctx context.Context, domain string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("apiKey", c.APIKey)
	q.Set("domain", domain)
	q.Set("emailAddress", "postmaster@"+domain)
	q.Set("outputFormat", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return VerdictUnknown, fmt.Errorf("%w: build request: %v", ErrExternalService, err)
	}
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return VerdictUnknown, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return VerdictUnknown, fmt.Errorf("%w: status %d", ErrExternalService, resp.StatusCode)
	}

	var payload whoisXMLResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return VerdictUnknown, fmt.Errorf("%w: decode response: %v", ErrExternalService, err)
	}

	field := payload.Disposable
	if !field.set {
		field = payload.DisposableCheck
	}
	if !field.set {
		return VerdictUnknown, fmt.Errorf("%w: response has no disposable field", ErrExternalService)
	}
	if field.value {
		return VerdictDisposable, nil
	}
	return VerdictNotDisposable, nil
}
