package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// zeroIV is the fixed initialization vector used for every envelope. Reusing
// a fixed IV under CFB mode would normally leak equal-plaintext-block
// relationships; here the 4-byte salt appended to every envelope (and the
// timestamp ahead of it) guarantees the plaintext never repeats across
// messages, which is the salt's entire purpose (see the spec glossary entry
// for "salt"). Participants never reveal or compare the
// salt; it exists purely to vary the plaintext.
var zeroIV = make([]byte, aes.BlockSize)

// seal encrypts plaintext under key using AES-CFB with the fixed IV.
func seal(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	stream := cipher.NewCFBEncrypter(block, zeroIV)
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)
	return ciphertext, nil
}

// open decrypts a frame sealed by seal. AES-CFB never fails on malformed
// ciphertext (it is a stream cipher), so open only returns an error when key
// is not a legal AES key length; the magic check in Decode is what actually detects
// a bad key or a tampered frame.
func open(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	stream := cipher.NewCFBDecrypter(block, zeroIV)
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// freshSalt returns 4 bytes of cryptographically random data.
func freshSalt() ([4]byte, error) {
	var salt [4]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, err
	}
	return salt, nil
}

// ValidKeySize reports whether key is a legal AES key length (128, 192, or
// 256 bits).
func ValidKeySize(key []byte) bool {
	switch len(key) {
	case 16, 24, 32:
		return true
	default:
		return false
	}
}
