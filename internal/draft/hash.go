package draft

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainValue = "readquiz/value/v1"
	DomainQuote = "readquiz/quote/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue computes the content hash served to clients in place of an
// answer value. Structurally equal values always produce the same digest,
// regardless of where in the draft they appear.
func HashValue(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("HashValue: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// QuoteID computes the durable identifier for a quote text. The id is a
// pure function of the NFC-normalized text, so like and comment counters
// survive draft replacement as long as the text is unchanged.
func QuoteID(text string) string {
	return hashWithDomain(DomainQuote, []byte(norm.NFC.String(text)))
}

// MustHashValue is like HashValue but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashValue(v any) string {
	h, err := HashValue(v)
	if err != nil {
		panic(err)
	}
	return h
}
