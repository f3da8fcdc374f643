package utils

import (
	"sort"
	"strings"
	"sync"
)

// Blocklist holds disallowed domains and full addresses. A domain entry
// matches every local part at that domain.
type Blocklist struct {
	mu        sync.RWMutex
	domains   map[string]struct{}
	addresses map[string]struct{}
}

// NewBlocklist creates a blocklist seeded with the given entries. Entries
// containing '@' are treated as addresses, anything else as a domain.
func NewBlocklist(entries ...string) *Blocklist {
	bl := &Blocklist{
		domains:   make(map[string]struct{}),
		addresses: make(map[string]struct{}),
	}
	for _, e := range entries {
		bl.Add(e)
	}
	return bl
}

// NewDefaultBlocklist creates a blocklist seeded with the built-in disposable
// domains plus any extra entries.
func NewDefaultBlocklist(extra ...string) *Blocklist {
	bl := NewBlocklist(DefaultDisposableDomains()...)
	for _, e := range extra {
		bl.Add(e)
	}
	return bl
}

// Add inserts a domain or an address. Adding an existing entry is a no-op.
func (bl *Blocklist) Add(entry string) {
	if strings.Contains(entry, "@") {
		bl.AddAddress(entry)
		return
	}
	bl.AddDomain(entry)
}

// Remove deletes a domain or an address if present.
func (bl *Blocklist) Remove(entry string) {
	if strings.Contains(entry, "@") {
		bl.RemoveAddress(entry)
		return
	}
	bl.RemoveDomain(entry)
}

// AddDomain reports whether the domain was newly added.
func (bl *Blocklist) AddDomain(domain string) bool {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return false
	}

	bl.mu.Lock()
	defer bl.mu.Unlock()
	if _, ok := bl.domains[domain]; ok {
		return false
	}
	bl.domains[domain] = struct{}{}
	return true
}

// AddAddress reports whether the address was newly added. Malformed
// addresses are ignored.
func (bl *Blocklist) AddAddress(email string) bool {
	addr, err := ParseAddress(email)
	if err != nil {
		return false
	}
	key := addressKey(addr)

	bl.mu.Lock()
	defer bl.mu.Unlock()
	if _, ok := bl.addresses[key]; ok {
		return false
	}
	bl.addresses[key] = struct{}{}
	return true
}

func (bl *Blocklist) RemoveDomain(domain string) {
	domain = NormalizeDomain(domain)
	bl.mu.Lock()
	delete(bl.domains, domain)
	bl.mu.Unlock()
}

func (bl *Blocklist) RemoveAddress(email string) {
	addr, err := ParseAddress(email)
	if err != nil {
		return
	}
	bl.mu.Lock()
	delete(bl.addresses, addressKey(addr))
	bl.mu.Unlock()
}

// Contains reports whether the full address or its domain is listed.
func (bl *Blocklist) Contains(addr EmailAddress) bool {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	if _, ok := bl.domains[addr.Domain]; ok {
		return true
	}
	_, ok := bl.addresses[addressKey(addr)]
	return ok
}

func (bl *Blocklist) HasDomain(domain string) bool {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	_, ok := bl.domains[NormalizeDomain(domain)]
	return ok
}

func (bl *Blocklist) HasAddress(email string) bool {
	addr, err := ParseAddress(email)
	if err != nil {
		return false
	}
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	_, ok := bl.addresses[addressKey(addr)]
	return ok
}

func (bl *Blocklist) DomainCount() int {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	return len(bl.domains)
}

func (bl *Blocklist) AddressCount() int {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	return len(bl.addresses)
}

// Domains returns a sorted snapshot of the listed domains.
func (bl *Blocklist) Domains() []string {
	bl.mu.RLock()
	out := make([]string, 0, len(bl.domains))
	for d := range bl.domains {
		out = append(out, d)
	}
	bl.mu.RUnlock()
	sort.Strings(out)
	return out
}

// addressKey lower-cases the local part too; mailbox lookups are
// case-insensitive for every provider we care about.
func addressKey(addr EmailAddress) string {
	return strings.ToLower(addr.Local) + "@" + addr.Domain
}

// DefaultDisposableDomains returns the built-in list of throwaway domains.
func DefaultDisposableDomains() []string {
	var domains []string
	for _, d := range strings.Split(disposableDomainList, "\n") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

const disposableDomainList = `
mailinator.com
tempmail.org
10minutemail.com
guerrillamail.com
trashmail.com
temp-mail.org
yopmail.com
maildrop.cc
dispostable.com
fakeinbox.com
throwawaymail.com
mailnesia.com
getairmail.com
mytemp.email
temp-mail.io
fake-mail.com
mail-temp.com
tempail.com
tempomail.fr
tempinbox.com
tempmailaddress.com
mailmetrash.com
trashmail.net
discard.email
mailcatch.com
tempemail.net
mailinator2.com
mintemail.com
notmailinator.com
spamgourmet.com
spamhole.com
spam4.me
spamdecoy.net
spambox.us
sharklasers.com
guerrillamailblock.com
getnada.com
emailondeck.com
mohmal.com
burnermail.io
trash-mail.com
trashmail.de
trashmail.me
trashymail.com
`
