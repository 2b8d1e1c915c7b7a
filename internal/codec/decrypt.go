// ABOUTME: AES-128-CBC decryption of incoming audio packets
// ABOUTME: Each packet reloads the IV from the session key exchange; only whole 16-byte blocks are encrypted
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Decryptor reverses the AES-128-CBC encryption applied to the ALAC payload
// of each audio packet. Only the leading aeslen = len &^ 0xf bytes are
// encrypted; any trailing partial block is carried through unchanged, which
// matches the reference player's alac_decode framing.
type Decryptor struct {
	key [16]byte
	iv  [16]byte
}

// NewDecryptor builds a decryptor from the session's 128-bit AES key and
// initial IV, both delivered out-of-band during stream setup.
func NewDecryptor(key, iv [16]byte) *Decryptor {
	return &Decryptor{key: key, iv: iv}
}

// Decrypt returns the plaintext for one packet's payload. The IV is reloaded
// from the session's fixed initial IV on every call: RTP/AirPlay audio
// packets do not chain CBC state across packets.
func (d *Decryptor) Decrypt(payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(d.key[:])
	if err != nil {
		return nil, fmt.Errorf("codec: aes.NewCipher: %w", err)
	}

	aeslen := len(payload) &^ 0xf
	out := make([]byte, len(payload))

	if aeslen > 0 {
		iv := d.iv
		mode := cipher.NewCBCDecrypter(block, iv[:])
		mode.CryptBlocks(out[:aeslen], payload[:aeslen])
	}
	copy(out[aeslen:], payload[aeslen:])
	return out, nil
}
