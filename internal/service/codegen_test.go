package service

import (
	"strings"
	"testing"
)

func TestGenerateOne(t *testing.T) {
	gen := NewCodeGenerator(12)

	code, err := gen.GenerateOne()
	if err != nil {
		t.Fatal("GenerateOne should not return an error:", err)
	}
	if len(code) != 12 {
		t.Errorf("code length = %d, expected 12", len(code))
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			t.Errorf("code contains symbol %q outside the alphabet", code[i])
		}
	}
}

func TestGenerateDistinct(t *testing.T) {
	gen := NewCodeGenerator(12)

	codes, err := gen.Generate(5000)
	if err != nil {
		t.Fatal("Generate should not return an error:", err)
	}
	if len(codes) != 5000 {
		t.Fatalf("generated %d codes, expected 5000", len(codes))
	}

	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			t.Fatalf("duplicate code generated: %s", c)
		}
		seen[c] = struct{}{}
	}
}

func TestGenerateRejectsInvalidQuantity(t *testing.T) {
	gen := NewCodeGenerator(12)
	for _, q := range []int{0, -1} {
		if _, err := gen.Generate(q); err == nil {
			t.Errorf("Generate(%d) should return an error", q)
		}
	}
}

func TestAlphabetExcludesAmbiguousSymbols(t *testing.T) {
	if len(codeAlphabet) != 32 {
		t.Fatalf("alphabet size = %d, expected 32", len(codeAlphabet))
	}
	for _, bad := range "0O1I" {
		if strings.ContainsRune(codeAlphabet, bad) {
			t.Errorf("alphabet should not contain ambiguous symbol %q", bad)
		}
	}
}

func TestIsWellFormed(t *testing.T) {
	gen := NewCodeGenerator(12)

	tests := []struct {
		input    string
		expected bool
	}{
		{"ABCDEFGHJKLM", true},
		{"ABC234WXYZ99", true},
		{"abcdefghjklm", false}, // lowercase is normalized before this check
		{"ABCDEFGHJKL", false},  // too short
		{"ABCDEFGHJKLMN", false},
		{"ABCDEFGHJKL0", false}, // ambiguous symbol
		{"ABCDEFGHJKL!", false},
		{"", false},
	}
	for _, test := range tests {
		if got := gen.IsWellFormed(test.input); got != test.expected {
			t.Errorf("IsWellFormed(%q) = %v, expected %v", test.input, got, test.expected)
		}
	}

	code, err := gen.GenerateOne()
	if err != nil {
		t.Fatal(err)
	}
	if !gen.IsWellFormed(code) {
		t.Errorf("generated code %q should be well formed", code)
	}
}
