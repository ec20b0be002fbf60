// Package id provides unique identifier generation for censoring jobs.
// IDs double as workspace directory names, so they only ever contain
// ASCII letters, digits and dashes.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Prefix starts every generated ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<timestamp>-<random>
// Example: job-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("%s%d", Prefix, timestamp)
	}
	return fmt.Sprintf("%s%d-%s", Prefix, timestamp, hex.EncodeToString(random))
}

// Valid reports whether s has the shape of an ID returned by Generate.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return false
	}
	ts, random, hasRandom := strings.Cut(rest, "-")
	if ts == "" || strings.TrimLeft(ts, "0123456789") != "" {
		return false
	}
	if !hasRandom {
		return true
	}
	if len(random) != 8 {
		return false
	}
	_, err := hex.DecodeString(random)
	return err == nil
}
