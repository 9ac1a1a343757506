package radio

import "github.com/robotalks/wifibridge/pkg/ring"

// matcher finds a token in a byte stream one byte at a time.
type matcher struct {
	token string
	pos   int
}

// feed advances with b and reports a complete match.
func (m *matcher) feed(b byte) bool {
	switch {
	case m.token[m.pos] == b:
		m.pos++
	case m.token[0] == b:
		m.pos = 1
	default:
		m.pos = 0
	}
	if m.pos == len(m.token) {
		m.pos = 0
		return true
	}
	return false
}

// Scan consumes every byte available in r and reports whether any of the
// tokens appeared. Consumed bytes are not restored.
func Scan(r *ring.Ring, tokens ...string) bool {
	var buf [4]matcher
	matchers := buf[:0]
	for _, tok := range tokens {
		if tok != "" {
			matchers = append(matchers, matcher{token: tok})
		}
	}
	found := false
	for r.HasData() {
		b := r.Pop()
		for n := range matchers {
			if matchers[n].feed(b) {
				found = true
			}
		}
	}
	return found
}
