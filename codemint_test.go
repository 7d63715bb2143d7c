package main

import "testing"

func TestCodeMintGeneratesDistinctCodes(t *testing.T) {
	m := NewCodeMint(4)

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		code := m.Generate()
		if len(code) < 4 {
			t.Fatalf("expected code length >= 4, got %q", code)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code generated: %q", code)
		}
		seen[code] = struct{}{}
	}
}

func TestCodeMintAlphabetExcludesConfusables(t *testing.T) {
	m := NewCodeMint(4)
	for _, c := range m.alphabet {
		switch c {
		case 'O', 'I', '0', '1':
			t.Fatalf("alphabet should not contain confusable character %q", c)
		}
	}
}

func TestCodeMintBumpLenIncreasesLength(t *testing.T) {
	m := NewCodeMint(2)
	before := m.length
	m.BumpLen()
	if m.length != before+1 {
		t.Fatalf("expected length to increase by 1, got %d -> %d", before, m.length)
	}
	m.ResetLen()
	if m.length != m.minLen {
		t.Fatalf("expected ResetLen to restore minLen, got %d", m.length)
	}
}

func TestCodeMintMinimumLengthOne(t *testing.T) {
	m := NewCodeMint(0)
	if m.minLen != 1 {
		t.Fatalf("expected minLen to be clamped to 1, got %d", m.minLen)
	}
}
