// Package siterule implements the site rule table (C2): a process-wide,
// read-mostly map of per-domain extraction configuration.
package siterule

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"pricewatch/internal/model"
)

// Table is a read-mostly lookup by registrable domain. Safe for concurrent
// reads; loaded once at startup and never mutated at runtime (§4.2 —
// learned selectors live on the Machine record instead, in internal/model).
type Table struct {
	mu    sync.RWMutex
	rules map[string]*model.SiteRule
}

// New builds a Table from a slice of rules, normalizing and sorting each
// rule's variant keywords by specificity (longest first, §4.2 invariant).
func New(rules []model.SiteRule) *Table {
	t := &Table{rules: make(map[string]*model.SiteRule, len(rules))}
	for i := range rules {
		r := rules[i]
		normalizeRule(&r)
		domain := NormalizeDomain(r.Domain)
		t.rules[domain] = &r
	}
	return t
}

func normalizeRule(r *model.SiteRule) {
	for i := range r.VariantRules {
		sortKeywordsBySpecificity(r.VariantRules[i].Keywords)
	}
}

// sortKeywordsBySpecificity orders keywords longest-first so that, e.g.,
// "ST50R" is tried before "50R" when both could match a machine name.
func sortKeywordsBySpecificity(keywords []string) {
	sort.SliceStable(keywords, func(i, j int) bool {
		return len(keywords[i]) > len(keywords[j])
	})
}

// Lookup returns the SiteRule for domain, or false if none is configured.
// O(1).
func (t *Table) Lookup(domain string) (*model.SiteRule, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rules[NormalizeDomain(domain)]
	return r, ok
}

// MachineRule walks the domain's variant_rules and returns the entry with
// the longest keyword matching machineName (case-insensitive substring),
// skipping entries whose URLPattern is set and does not match url; on a tie
// the earlier entry wins (§4.2).
func (t *Table) MachineRule(domain, machineName, url string) (*model.VariantRule, bool) {
	rule, ok := t.Lookup(domain)
	if !ok {
		return nil, false
	}
	lowerName := strings.ToLower(machineName)
	var best *model.VariantRule
	bestLen := 0
	for i := range rule.VariantRules {
		vr := &rule.VariantRules[i]
		n := longestMatchingKeyword(lowerName, vr.Keywords)
		if n <= bestLen {
			continue
		}
		if vr.URLPattern != "" {
			matched, err := regexp.MatchString(vr.URLPattern, url)
			if err != nil || !matched {
				continue
			}
		}
		best, bestLen = vr, n
	}
	return best, best != nil
}

// longestMatchingKeyword returns the length of the longest keyword found in
// lowerName, or 0 when none is.
func longestMatchingKeyword(lowerName string, keywords []string) int {
	longest := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if len(kw) > longest && strings.Contains(lowerName, strings.ToLower(kw)) {
			longest = len(kw)
		}
	}
	return longest
}

// MachineOverride looks up a per-machine manual-correction rule by slug,
// the highest-priority VariantRule source (SPEC_FULL §4, grounded on the
// distillation's dropped per-machine override table).
func (t *Table) MachineOverride(domain, machineSlug string) (*model.MachineOverride, bool) {
	rule, ok := t.Lookup(domain)
	if !ok {
		return nil, false
	}
	slug := strings.ToLower(machineSlug)
	for i := range rule.MachineOverrides {
		if strings.ToLower(rule.MachineOverrides[i].MachineSlug) == slug {
			return &rule.MachineOverrides[i], true
		}
	}
	return nil, false
}

// Domains returns every configured domain, mostly for diagnostics/tests.
func (t *Table) Domains() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rules))
	for d := range t.rules {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// NormalizeDomain strips a leading "www." and lowercases, matching the
// registrable-domain form used as the table's key (§3.4).
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	return d
}

// DomainFromURL extracts the registrable domain from a full URL or bare host.
func DomainFromURL(rawURL string) (string, error) {
	host := rawURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		return "", fmt.Errorf("siterule: no host in url %q", rawURL)
	}
	return NormalizeDomain(host), nil
}
