package meridian

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// DefaultSignatureSlots is the signature length used by the default band
// configuration (5 bands x 4 rows).
const DefaultSignatureSlots = 20

// minHashSeedStride spaces the per-slot hash seeds apart.
const minHashSeedStride = 98765

// MinHasher turns a text feature into a fixed-length MinHash signature.
//
// Each slot i hashes every token with a seed of 5381 + i*98765 and keeps the
// smallest value. Two texts agree on a slot with probability equal to the
// Jaccard similarity of their token sets, so the fraction of equal slots
// estimates that similarity.
//
// Text is NFKC-normalized and lowercased, then split into UAX#29 words.
// Tokens shorter than MinTokenLength runes are ignored.
type MinHasher struct {
	slots          int
	minTokenLength int
}

// NewMinHasher creates a signer producing signatures of the given length.
func NewMinHasher(slots int) (*MinHasher, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("signature slots must be positive, got %d", slots)
	}
	return &MinHasher{
		slots:          slots,
		minTokenLength: 3,
	}, nil
}

// Slots returns the signature length.
func (h *MinHasher) Slots() int {
	return h.slots
}

// Sign computes the signature of text. Text without usable tokens leaves
// every slot at math.MaxUint32.
func (h *MinHasher) Sign(text string) []uint32 {
	sig := make([]uint32, h.slots)
	for i := range sig {
		sig[i] = math.MaxUint32
	}

	for _, token := range tokenize(normalize(text)) {
		if utf8.RuneCountInString(token) < h.minTokenLength || !isWord(token) {
			continue
		}
		for i := range sig {
			if v := seededHash(token, uint32(i)*minHashSeedStride); v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// seededHash is djb2 with the starting value offset by seed.
func seededHash(s string, seed uint32) uint32 {
	hash := uint32(5381) + seed
	for i := 0; i < len(s); i++ {
		hash = (hash << 5) + hash + uint32(s[i])
	}
	return hash
}

// normalize applies Unicode NFKC normalization and lowercases the result.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// tokenize splits text into tokens using UAX#29 word segmentation.
func tokenize(s string) []string {
	toks := words.FromString(s)
	var tokens []string
	for toks.Next() {
		tokens = append(tokens, toks.Value())
	}
	return tokens
}

// isWord reports whether a segment holds at least one letter or digit;
// UAX#29 also yields whitespace and punctuation segments.
func isWord(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
