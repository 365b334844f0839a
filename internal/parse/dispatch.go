package parse

import (
	"strings"

	"jobtrack-engine/internal/domain"
)

// DomainParser is a Parser that claims a set of sender domains.
type DomainParser interface {
	Parser
	Domains() []string
}

type entry struct {
	domain string
	parser Parser
}

// Dispatcher routes messages to parsers by sender domain. It is built once
// and never modified, so it is safe for concurrent use.
type Dispatcher struct {
	exact    map[string]Parser
	ordered  []entry
	fallback Parser
}

// NewDispatcher builds the domain lookup from parsers in order. When two
// parsers claim the same domain the later one wins the exact lookup, while
// suffix matching keeps registration order.
func NewDispatcher(fallback Parser, parsers ...DomainParser) *Dispatcher {
	d := &Dispatcher{exact: make(map[string]Parser), fallback: fallback}
	for _, p := range parsers {
		for _, dom := range p.Domains() {
			dom = strings.ToLower(dom)
			if _, dup := d.exact[dom]; !dup {
				d.ordered = append(d.ordered, entry{domain: dom, parser: p})
			} else {
				for i := range d.ordered {
					if d.ordered[i].domain == dom {
						d.ordered[i].parser = p
					}
				}
			}
			d.exact[dom] = p
		}
	}
	return d
}

// DefaultDispatcher wires every known platform parser with the generic
// fallback.
func DefaultDispatcher() *Dispatcher {
	return NewDispatcher(Generic{}, PlatformParsers()...)
}

// Parse returns the first outcome produced by, in order: the parser owning the
// exact sender domain, parsers whose domain is a suffix match in either
// direction, and the fallback.
func (d *Dispatcher) Parse(m domain.Message) (domain.ParseOutcome, bool) {
	senderDomain := SenderDomain(m.From)

	if p, ok := d.exact[senderDomain]; ok {
		if out, ok := p.Parse(m); ok {
			return out, true
		}
	}

	for _, e := range d.ordered {
		if suffixMatch(senderDomain, e.domain) {
			if out, ok := e.parser.Parse(m); ok {
				return out, true
			}
		}
	}

	if d.fallback == nil {
		return domain.ParseOutcome{}, false
	}
	return d.fallback.Parse(m)
}

func suffixMatch(a, b string) bool {
	return strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}
