/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"sort"
)

// codeAlphabet is A-Z and 0-9 minus the easily-confused O, I, 0, 1.
func codeAlphabet() []byte {
	seen := make(map[byte]struct{})
	for c := byte('A'); c <= 'Z'; c++ {
		seen[c] = struct{}{}
	}
	for c := byte('0'); c <= '9'; c++ {
		seen[c] = struct{}{}
	}
	for _, c := range []byte("OI01") {
		delete(seen, c)
	}
	out := make([]byte, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// shuffleBytes performs a crypto/rand Fisher-Yates shuffle, the same
// construction celebrity.go's startGameLocked uses to randomize turn
// order.
func shuffleBytes(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		var buf [1]byte
		if _, err := rand.Read(buf[:]); err != nil {
			continue
		}
		j := int(buf[0]) % (i + 1)
		b[i], b[j] = b[j], b[i]
	}
}

// CodeMint emits short, distinct, human-friendly join codes by
// base-N-encoding an incrementing counter with a digit-carry offset, so
// consecutive codes look dissimilar. Grounded on
// original_source/ld51_server/game/join_code.py.
type CodeMint struct {
	alphabet []byte
	base     int

	minLen    int
	length    int
	lastValue uint64
}

func NewCodeMint(minLen int) *CodeMint {
	if minLen < 1 {
		minLen = 1
	}
	alphabet := codeAlphabet()
	shuffleBytes(alphabet)

	m := &CodeMint{
		alphabet: alphabet,
		base:     len(alphabet),
		minLen:   minLen,
	}
	m.ResetLen()
	return m
}

func (m *CodeMint) setLen(length int) {
	m.length = length
	v := uint64(1)
	for i := 0; i < length-1; i++ {
		v *= uint64(m.base)
	}
	m.lastValue = v
}

// ResetLen returns the working code length to its minimum.
func (m *CodeMint) ResetLen() {
	m.setLen(m.minLen)
}

// BumpLen increases the working code length by one, used after a
// collision.
func (m *CodeMint) BumpLen() {
	m.setLen(m.length + 1)
}

func (m *CodeMint) encode(val uint64) string {
	var out []byte
	lastDigit := uint64(0)
	base := uint64(m.base)

	for val > 0 {
		digit := val % base
		val /= base
		actual := (digit + lastDigit) % base
		out = append(out, m.alphabet[actual])
		lastDigit = actual + 1
	}
	return string(out)
}

// Generate produces the next code in sequence.
func (m *CodeMint) Generate() string {
	modulus := uint64(1)
	for i := 0; i < m.length; i++ {
		modulus *= uint64(m.base)
	}
	m.lastValue = (m.lastValue + 1) % modulus
	return m.encode(m.lastValue)
}
