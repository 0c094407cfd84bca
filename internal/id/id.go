// Package id generates opaque identifiers for session tokens and request correlation.
//
// Record ids are not produced here: collections use sequential decimal ids allocated by the store.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet omits look-alike characters so ids survive being read aloud or copied from logs.
const alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Generate returns "<prefix>-<21 char nanoid>", e.g. "tok-V1StGXR8Z5jdHi6BmyTqe".
func Generate(prefix string) (string, error) {
	raw, err := gonanoid.Generate(alphabet, 21)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + raw, nil
}

// Short returns a 10 character id without prefix. It panics only when the system entropy source fails.
func Short() string {
	return gonanoid.MustGenerate(alphabet, 10)
}
