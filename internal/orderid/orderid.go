// Package orderid generates human-shareable order identifiers of the form
// XS + 3 address characters + 5 time characters + 4 random characters, all
// uppercase base36.
//
// The time part is milliseconds modulo 36^5, so it wraps roughly every
// 16.8 hours. Two orders collide only if they share the address prefix, land
// on the same millisecond slot in the window and draw the same 4-character
// suffix (1 in 36^4). At 10k orders a day that is on the order of 1e-6
// expected collisions a day; the unique index on order_id catches the rest.
package orderid

import (
	"crypto/rand"
	"math/big"
	"strings"
	"sync"
	"time"
)

const (
	Prefix     = "XS"
	addrLen    = 3
	timeLen    = 5
	randLen    = 4
	Length     = len(Prefix) + addrLen + timeLen + randLen
	padChar    = 'X'
	alphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	timeModulo = 36 * 36 * 36 * 36 * 36
	randModulo = 36 * 36 * 36 * 36
)

// Generator builds order ids. The zero value is not usable; call New.
type Generator struct {
	mu    sync.Mutex
	now   func() time.Time
	randn func(n int64) (int64, error)
}

type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRandom overrides the random source; randn must return a value in [0, n).
func WithRandom(randn func(n int64) (int64, error)) Option {
	return func(g *Generator) { g.randn = randn }
}

func New(opts ...Option) *Generator {
	g := &Generator{now: time.Now, randn: cryptoRandn}
	for _, o := range opts {
		o(g)
	}
	return g
}

func cryptoRandn(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// Generate returns a fresh id derived from the delivery address.
func (g *Generator) Generate(address string) (string, error) {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	r, err := g.randn(randModulo)
	g.mu.Unlock()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(Length)
	b.WriteString(Prefix)
	b.WriteString(AddressPart(address))
	b.WriteString(base36(ms%timeModulo, timeLen))
	b.WriteString(base36(r, randLen))
	return b.String(), nil
}

// AddressPart takes the first three ASCII letters or digits of the
// uppercased address, padding with X.
func AddressPart(address string) string {
	out := make([]byte, 0, addrLen)
	for _, r := range strings.ToUpper(address) {
		if len(out) == addrLen {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, byte(r))
		}
	}
	for len(out) < addrLen {
		out = append(out, padChar)
	}
	return string(out)
}

func base36(v int64, width int) string {
	if v < 0 {
		v = -v
	}
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = alphabet[v%36]
		v /= 36
	}
	return string(buf)
}

// Valid reports whether s has the shape of a generated id.
func Valid(s string) bool {
	if len(s) != Length || !strings.HasPrefix(s, Prefix) {
		return false
	}
	for i := len(Prefix); i < len(s); i++ {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
