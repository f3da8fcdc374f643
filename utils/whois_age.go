package utils

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/likexian/whois"
	"github.com/sirupsen/logrus"
)

// WhoisFunc returns the raw WHOIS record of a domain.
type WhoisFunc func(domain string) (string, error)

// DomainAgeValidator flags domains registered more recently than MinAge.
// Throwaway providers rotate through freshly registered domains.
type DomainAgeValidator struct {
	MinAge time.Duration
	Whois  WhoisFunc
	Logger logrus.FieldLogger
	now    func() time.Time
}

func NewDomainAgeValidator(minAge, timeout time.Duration, logger logrus.FieldLogger) *DomainAgeValidator {
	client := whois.NewClient().SetTimeout(timeout)
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DomainAgeValidator{
		MinAge: minAge,
		Whois: func(domain string) (string, error) {
			return client.Whois(domain)
		},
		Logger: logger.WithField("component", "whois_age"),
		now:    time.Now,
	}
}

func (v *DomainAgeValidator) Lookup(ctx context.Context, domain string) Verdict {
	raw, err := v.query(ctx, NormalizeDomain(domain))
	if err != nil {
		v.Logger.WithFields(logrus.Fields{
			"domain": domain,
			"error":  err.Error(),
		}).Warn("WHOIS lookup failed")
		return VerdictUnknown
	}

	created, ok := ParseWhoisCreationDate(raw)
	if !ok {
		v.Logger.WithField("domain", domain).Debug("WHOIS record has no creation date")
		return VerdictUnknown
	}

	now := time.Now
	if v.now != nil {
		now = v.now
	}
	if now().Sub(created) < v.MinAge {
		return VerdictDisposable
	}
	return VerdictNotDisposable
}

// query runs the blocking WHOIS call so the caller's context can abandon it.
func (v *DomainAgeValidator) query(ctx context.Context, domain string) (string, error) {
	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		raw, err := v.Whois(domain)
		ch <- result{raw, err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.Join(ErrExternalService, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", errors.Join(ErrExternalService, r.err)
		}
		return r.raw, nil
	}
}

var creationDateKeys = []string{
	"creation date",
	"created on",
	"created",
	"registered on",
	"registration time",
	"domain registration date",
	"registered",
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02 15:04:05",
	"2006.01.02",
	"02-Jan-2006",
	"02.01.2006",
	"2006/01/02",
	"January 2 2006",
	"Mon Jan 2 15:04:05 MST 2006",
}

// ParseWhoisCreationDate finds the first parsable creation date in a raw
// WHOIS record.
func ParseWhoisCreationDate(raw string) (time.Time, bool) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if value == "" || !isCreationKey(key) {
			continue
		}
		for _, layout := range whoisDateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func isCreationKey(key string) bool {
	for _, k := range creationDateKeys {
		if key == k {
			return true
		}
	}
	return false
}
