// Package regid generates registration identifiers of the form
//
//	PREFIX-<unix millis>-<8 chars of [0-9A-Z]>
//
// e.g. MILAN-1739512345678-7QX2K9AB. The millisecond part is monotonic within
// a process; the suffix comes from a random v4 UUID, which covers ids minted
// in the same millisecond by different processes.
package regid

import (
	"crypto/rand"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPrefix = "MILAN"
	SuffixLen     = 8
)

type Generator struct {
	prefix string
	now    func() time.Time
	rand   io.Reader
	last   atomic.Int64
}

type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRand overrides the randomness source.
func WithRand(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

func New(prefix string, opts ...Option) *Generator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	g := &Generator{prefix: prefix, now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Prefix() string { return g.prefix }

// Generate never fails. If the randomness source errors the suffix falls back
// to crypto/rand.
func (g *Generator) Generate() string {
	return g.prefix + "-" + strconv.FormatInt(g.nextMillis(), 10) + "-" + g.suffix()
}

func (g *Generator) nextMillis() int64 {
	ms := g.now().UnixMilli()
	for {
		last := g.last.Load()
		next := ms
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (g *Generator) suffix() string {
	u, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		u = uuid.New()
	}
	s := strings.ToUpper(new(big.Int).SetBytes(u[:]).Text(36))
	if len(s) < SuffixLen {
		s = strings.Repeat("0", SuffixLen-len(s)) + s
	}
	return s[len(s)-SuffixLen:]
}

var (
	prefixRe = regexp.MustCompile(`^[A-Z0-9]+$`)
	format   = regexp.MustCompile(`^([A-Z0-9]+)-(\d{13,})-([0-9A-Z]{8})$`)
)

// ValidPrefix reports whether p can prefix ids that Valid accepts.
func ValidPrefix(p string) bool {
	return prefixRe.MatchString(p)
}

// Valid reports whether s looks like an id minted with the given prefix.
func Valid(prefix, s string) bool {
	m := format.FindStringSubmatch(s)
	return m != nil && m[1] == strings.ToUpper(prefix)
}
