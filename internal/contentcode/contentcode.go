// Package contentcode generates and recognises the short codes payers put in the
// bank transfer description so a gateway notification can be matched to an intent.
package contentcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
)

const (
	// Prefix starts every content code.
	Prefix = "CK"
	// Alphabet drops the look-alike symbols 0, 1, I and O.
	Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	// SuffixLength is the number of random symbols after Prefix.
	SuffixLength = 6
	// Length is the full code length.
	Length = len(Prefix) + SuffixLength
)

var (
	codePattern   = regexp.MustCompile(Prefix + `[` + Alphabet + `]{6}`)
	validPattern  = regexp.MustCompile(`^` + Prefix + `[` + Alphabet + `]{6}$`)
	loosePattern  = regexp.MustCompile(Prefix + `[0-9A-Z]{6}`)
	defaultSource = NewGenerator(rand.Reader)
)

// Generator draws codes from a random source. The zero value is not usable.
type Generator struct {
	source io.Reader
}

func NewGenerator(source io.Reader) *Generator {
	return &Generator{source: source}
}

// Generate returns Prefix followed by SuffixLength symbols drawn uniformly from Alphabet.
// It panics if the random source fails, as uuid.New does.
func (g *Generator) Generate() string {
	buf := make([]byte, SuffixLength)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		panic(fmt.Sprintf("contentcode: random source failed: %v", err))
	}

	code := make([]byte, 0, Length)
	code = append(code, Prefix...)
	for _, b := range buf {
		// 256 is a multiple of len(Alphabet), so the modulo keeps the draw uniform.
		code = append(code, Alphabet[int(b)%len(Alphabet)])
	}
	return string(code)
}

// Generate draws a code from crypto/rand.
func Generate() string {
	return defaultSource.Generate()
}

// Valid reports whether code is exactly a code this package could have generated.
func Valid(code string) bool {
	return validPattern.MatchString(code)
}

// Extract finds a content code anywhere inside free text such as a bank transfer
// description. Codes built from Alphabet win; when none is present the first
// CK-prefixed run of six upper-case alphanumerics is returned so a payer's typo
// still reaches the lookup and is logged against the code they actually typed.
func Extract(content string) (string, bool) {
	if code := codePattern.FindString(content); code != "" {
		return code, true
	}
	if code := loosePattern.FindString(content); code != "" {
		return code, true
	}
	return "", false
}
