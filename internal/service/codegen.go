package service

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet is the 32-symbol set used for product codes. Ambiguous glyphs
// (0/O, 1/I) are excluded so printed codes survive bad fonts and bad scans.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the printed length of a product code. 12 symbols over
// a 32-char alphabet gives 60 bits of entropy per code.
const DefaultCodeLength = 12

// CodeGenerator produces unique alphanumeric product codes from a
// cryptographically secure random source. It has no side effects; global
// uniqueness against storage is the bulk inserter's job.
type CodeGenerator struct {
	Length int
}

func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{Length: length}
}

// GenerateOne draws Length random bytes and maps each onto the alphabet.
// The alphabet size divides 256 evenly, so the mapping is unbiased.
func (g *CodeGenerator) GenerateOne() (string, error) {
	buf := make([]byte, g.Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	out := make([]byte, g.Length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// Generate returns quantity distinct code values. With 32^12 possible values
// the in-memory birthday collision chance is negligible, so the loop needs no
// retry cap; it simply draws again on the rare duplicate.
func (g *CodeGenerator) Generate(quantity int) ([]string, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity: %d", quantity)
	}

	codes := make([]string, 0, quantity)
	seen := make(map[string]struct{}, quantity)

	for len(codes) < quantity {
		code, err := g.GenerateOne()
		if err != nil {
			return nil, err
		}
		if _, exists := seen[code]; !exists {
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}

	return codes, nil
}

// IsWellFormed reports whether value could have been produced by this
// generator: exact length, every symbol in the alphabet.
func (g *CodeGenerator) IsWellFormed(value string) bool {
	if len(value) != g.Length {
		return false
	}
	for i := 0; i < len(value); i++ {
		if !isAlphabetSymbol(value[i]) {
			return false
		}
	}
	return true
}

func isAlphabetSymbol(b byte) bool {
	for i := 0; i < len(codeAlphabet); i++ {
		if codeAlphabet[i] == b {
			return true
		}
	}
	return false
}
