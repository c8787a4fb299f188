// Package testutils provides small random-data helpers for tests.
package testutils

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomDigits returns a random numeric string of exactly n digits with a
// non-zero leading digit, shaped like the marketplace's account, listing
// and booking identifiers.
func RandomDigits(n int) string {
	if n <= 0 {
		return ""
	}

	mu.Lock()
	defer mu.Unlock()

	var b strings.Builder

	b.WriteByte(byte('1' + rnd.Intn(9)))
	for i := 1; i < n; i++ {
		b.WriteByte(byte('0' + rnd.Intn(10)))
	}

	return b.String()
}
