package qicrypto

import "runtime"

// ClearBytes zeroes b in place, adapted from the teacher's
// internal/services/crypto/memory.go. No package in this module calls
// it; seed bytes and derived private-key buffers are not wiped.
func ClearBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
