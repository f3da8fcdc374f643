package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"mailkit/config"
)

const (
	DefaultCacheTTL = 24 * time.Hour

	// lookupTimeout bounds one shared validation run.
	lookupTimeout = 30 * time.Second

	verdictKeyPrefix = "verdict:"
	cachedBlocked    = "blocked"
	cachedAllowed    = "allowed"
)

// Decision sources.
const (
	SourceBlocklist = "blocklist"
	SourceCache     = "cache"
	SourceExternal  = "external"
	SourceDefault   = "default"
)

// Decision is the outcome of a single check.
type Decision struct {
	Address string `json:"address"`
	Domain  string `json:"domain"`
	Blocked bool   `json:"blocked"`
	Source  string `json:"source"`
}

// MXResolver is satisfied by *net.Resolver.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Checker decides whether an address is disallowed: blocklist first, then
// the verdict cache, then the external validator. Transient cache and
// validator failures never fail a check; only malformed input does.
type Checker struct {
	Blocklist *Blocklist
	Cache     CacheBackend
	Validator Validator
	TTL       time.Duration
	Source    *DomainSource
	Resolver  MXResolver
	Logger    logrus.FieldLogger

	lookups   singleflight.Group
	closeOnce sync.Once
}

func NewChecker(blocklist *Blocklist, cache CacheBackend, validator Validator, ttl time.Duration, logger logrus.FieldLogger) *Checker {
	if blocklist == nil {
		blocklist = NewBlocklist()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Checker{
		Blocklist: blocklist,
		Cache:     cache,
		Validator: validator,
		TTL:       ttl,
		Resolver:  net.DefaultResolver,
		Logger:    logger.WithField("component", "checker"),
	}
}

// NewCheckerFromConfig wires the cache backend, the validators and the seed
// blocklist described by cfg.
func NewCheckerFromConfig(cfg config.CheckerConfig, logger logrus.FieldLogger) (*Checker, error) {
	cache, err := NewCacheBackend(cfg)
	if err != nil {
		return nil, err
	}

	var chain ValidatorChain
	if cfg.APIKey != "" {
		chain = append(chain, NewWhoisXMLClient(cfg.APIKey, cfg.APIEndpoint, cfg.APITimeout, logger))
	}
	if cfg.MinDomainAge > 0 {
		chain = append(chain, NewDomainAgeValidator(cfg.MinDomainAge, cfg.APITimeout, logger))
	}

	seeds := append(append([]string{}, cfg.SeedDomains...), cfg.SeedAddresses...)
	c := NewChecker(NewDefaultBlocklist(seeds...), cache, chain, cfg.CacheTTL, logger)
	if cfg.SourceURL != "" {
		c.Source = NewDomainSource(cfg.SourceURL)
	}
	return c, nil
}

// IsBlocked reports whether address must be rejected.
func (c *Checker) IsBlocked(ctx context.Context, address string) (bool, error) {
	d, err := c.Check(ctx, address)
	if err != nil {
		return false, err
	}
	return d.Blocked, nil
}

// Check runs the full pipeline and reports where the answer came from.
func (c *Checker) Check(ctx context.Context, address string) (Decision, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Address: addr.String(), Domain: addr.Domain}

	if c.Blocklist.Contains(addr) {
		d.Blocked, d.Source = true, SourceBlocklist
		return d, nil
	}

	if blocked, ok := c.cachedVerdict(ctx, addr.Domain); ok {
		d.Blocked, d.Source = blocked, SourceCache
		return d, nil
	}

	verdict := c.lookup(ctx, addr.Domain)

	switch verdict {
	case VerdictDisposable:
		d.Blocked, d.Source = true, SourceExternal
	case VerdictNotDisposable:
		d.Source = SourceExternal
	default:
		d.Source = SourceDefault
	}
	return d, nil
}

// cachedVerdict treats a cache error as a miss.
func (c *Checker) cachedVerdict(ctx context.Context, domain string) (blocked bool, ok bool) {
	val, found, err := c.Cache.Get(ctx, verdictKey(domain))
	if err != nil {
		c.Logger.WithFields(logrus.Fields{
			"domain": domain,
			"error":  err.Error(),
		}).Warn("Verdict cache unavailable, falling through to external validation")
		return false, false
	}
	if !found {
		return false, false
	}
	switch val {
	case cachedBlocked:
		return true, true
	case cachedAllowed:
		return false, true
	default:
		c.Logger.WithField("domain", domain).Warnf("Ignoring unexpected cached verdict %q", val)
		return false, false
	}
}

// lookup coalesces concurrent validations of one domain. The shared call is
// detached from any single caller, so a caller giving up only abandons its
// own wait and reads as Unknown.
func (c *Checker) lookup(ctx context.Context, domain string) Verdict {
	ch := c.lookups.DoChan(domain, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return c.validate(lookupCtx, domain), nil
	})

	select {
	case <-ctx.Done():
		c.Logger.WithField("domain", domain).Debug("Check abandoned before validation finished")
		return VerdictUnknown
	case res := <-ch:
		return res.Val.(Verdict)
	}
}

// validate calls the external validator and records a definite verdict.
// Unknown verdicts are not cached so the next check retries.
func (c *Checker) validate(ctx context.Context, domain string) Verdict {
	if c.Validator == nil {
		return VerdictUnknown
	}

	verdict := c.Validator.Lookup(ctx, domain)
	switch verdict {
	case VerdictDisposable:
		c.Blocklist.AddDomain(domain)
		c.storeVerdict(ctx, domain, cachedBlocked)
		LogEvent("disposable_domain_detected", map[string]interface{}{"domain": domain})
	case VerdictNotDisposable:
		c.storeVerdict(ctx, domain, cachedAllowed)
	}
	return verdict
}

func (c *Checker) storeVerdict(ctx context.Context, domain, value string) {
	if err := c.Cache.Set(ctx, verdictKey(domain), value, c.TTL); err != nil {
		c.Logger.WithFields(logrus.Fields{
			"domain": domain,
			"error":  err.Error(),
		}).Warn("Failed to cache verdict")
	}
}

// BlockDomain adds a domain to the blocklist without any lookup.
func (c *Checker) BlockDomain(domain string) error {
	if NormalizeDomain(domain) == "" {
		return fmt.Errorf("%w: empty domain", ErrInvalidAddress)
	}
	c.Blocklist.AddDomain(domain)
	return nil
}

// BlockAddress adds a single address to the blocklist without any lookup.
func (c *Checker) BlockAddress(address string) error {
	if _, err := ParseAddress(address); err != nil {
		return err
	}
	c.Blocklist.AddAddress(address)
	return nil
}

// UnblockDomain removes a domain from the blocklist and drops its cached
// verdict. Removing an absent domain is not an error.
func (c *Checker) UnblockDomain(ctx context.Context, domain string) {
	domain = NormalizeDomain(domain)
	c.Blocklist.RemoveDomain(domain)
	if err := c.Cache.Delete(ctx, verdictKey(domain)); err != nil {
		c.Logger.WithFields(logrus.Fields{
			"domain": domain,
			"error":  err.Error(),
		}).Warn("Failed to drop cached verdict")
	}
}

func (c *Checker) UnblockAddress(address string) {
	c.Blocklist.RemoveAddress(address)
}

// IsDisposable reports whether the domain of email is already known to be
// disposable, from the blocklist or the cache. It never calls the validator.
func (c *Checker) IsDisposable(ctx context.Context, email string) (bool, error) {
	addr, err := ParseAddress(email)
	if err != nil {
		return false, err
	}
	if c.Blocklist.HasDomain(addr.Domain) {
		return true, nil
	}
	blocked, ok := c.cachedVerdict(ctx, addr.Domain)
	return ok && blocked, nil
}

// AddTempDomains merges domains into the blocklist and returns how many were new.
func (c *Checker) AddTempDomains(domains ...string) int {
	added := 0
	for _, d := range domains {
		if c.Blocklist.AddDomain(d) {
			added++
		}
	}
	return added
}

// LoadTempDomains fetches the configured source list and merges it.
func (c *Checker) LoadTempDomains(ctx context.Context) (int, error) {
	if c.Source == nil {
		return 0, ErrNoDomainSource
	}
	domains, err := c.Source.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	added := c.AddTempDomains(domains...)
	c.Logger.WithFields(logrus.Fields{
		"fetched": len(domains),
		"added":   added,
	}).Info("Temporary domain list loaded")
	return added, nil
}

// CheckMX reports whether the domain publishes at least one MX record.
func (c *Checker) CheckMX(ctx context.Context, domain string) (bool, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return false, fmt.Errorf("%w: empty domain", ErrInvalidAddress)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	records, err := c.Resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, nil
		}
		return false, fmt.Errorf("mx lookup for %s: %w", domain, err)
	}
	return len(records) > 0, nil
}

func (c *Checker) BlockedDomainCount() int {
	return c.Blocklist.DomainCount()
}

func (c *Checker) BlockedAddressCount() int {
	return c.Blocklist.AddressCount()
}

// FlushCache drops every cached verdict.
func (c *Checker) FlushCache(ctx context.Context) error {
	return c.Cache.Flush(ctx)
}

// Close releases the cache backend. Errors are logged, and repeated calls
// are no-ops.
func (c *Checker) Close() {
	c.closeOnce.Do(func() {
		if err := c.Cache.Close(); err != nil {
			c.Logger.WithField("error", err.Error()).Warn("Error closing cache backend")
		}
	})
}

func verdictKey(domain string) string {
	return verdictKeyPrefix + domain
}
