package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

// encryptForTest mirrors the encoder side of AES-128-CBC with per-call IV
// reload, used only to construct fixtures for the decrypt tests above.
func encryptForTest(t *testing.T, key, iv [16]byte, plain []byte) []byte {
	t.Helper()
	aeslen := len(plain) &^ 0xf
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	out := make([]byte, len(plain))
	if aeslen > 0 {
		ivCopy := iv
		mode := cipher.NewCBCEncrypter(block, ivCopy[:])
		mode.CryptBlocks(out[:aeslen], plain[:aeslen])
	}
	copy(out[aeslen:], plain[aeslen:])
	return out
}
