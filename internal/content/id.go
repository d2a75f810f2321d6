package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Normalize collapses internal whitespace and trims. Identity is computed
// over normalized text so cosmetic formatting differences never defeat
// cross-run dedup.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// DeriveID returns the stable identifier for a natural key: the hex-encoded
// SHA-256 of the normalized text. Pure; identical normalized input yields
// identical output across processes and time.
func DeriveID(naturalKey string) string {
	sum := sha256.Sum256([]byte(Normalize(naturalKey)))
	return hex.EncodeToString(sum[:])
}

// lastFallbackNano makes fallback timestamps strictly increasing even when
// the wall clock doesn't move between calls.
var lastFallbackNano atomic.Int64

func fallbackNano() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastFallbackNano.Load()
		if now <= last {
			now = last + 1
		}
		if lastFallbackNano.CompareAndSwap(last, now) {
			return now
		}
	}
}

// FallbackID returns an identifier for placeholder content. It incorporates
// a monotonic subsecond timestamp, so it never matches history: fallback
// content is never suppressed and never counted as a duplicate.
func FallbackID(cat Category) string {
	n := fallbackNano()
	return fmt.Sprintf("fallback_%s_%d.%09d", cat, n/int64(time.Second), n%int64(time.Second))
}

// IsFallbackID reports whether id was produced by FallbackID.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, "fallback_")
}
