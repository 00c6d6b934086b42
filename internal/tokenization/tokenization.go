// Package tokenization seals partner payout keys at rest. Tokens keep the shape of the
// original value ("FPT:<masked>:<ciphertext>") so a dump of the partners table shows a
// plausible but useless key.
package tokenization

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const tokenPrefix = "FPT:"

// TokenizationMode defines the type of tokenization to use
type TokenizationMode int

const (
	// StandardMode is AES-GCM with base64 encoding.
	StandardMode TokenizationMode = iota

	// FormatPreservingMode keeps letters, digits and punctuation in place.
	FormatPreservingMode
)

var ErrInvalidToken = errors.New("invalid token")

type TokenizationService struct {
	key []byte
}

// NewTokenizationService checks the key is a valid AES key (16, 24 or 32 bytes).
func NewTokenizationService(encryptionKey []byte) (*TokenizationService, error) {
	if _, err := aes.NewCipher(encryptionKey); err != nil {
		return nil, fmt.Errorf("tokenization key: %w", err)
	}
	return &TokenizationService{key: encryptionKey}, nil
}

// IsToken reports whether value was produced by FormatPreservingMode.
func IsToken(value string) bool {
	return strings.HasPrefix(value, tokenPrefix)
}

// Protect tokenizes value in format preserving mode. Empty values and values that are
// already tokens are returned unchanged.
func (s *TokenizationService) Protect(value string) (string, error) {
	if value == "" || IsToken(value) {
		return value, nil
	}
	return s.TokenizeWithMode(value, FormatPreservingMode)
}

// Reveal returns the original of a token. Anything that is not a token is returned as
// is, so rows written before tokenization was enabled still read.
func (s *TokenizationService) Reveal(value string) (string, error) {
	if !IsToken(value) {
		return value, nil
	}
	return s.Detokenize(value)
}

func (s *TokenizationService) Tokenize(value string) (string, error) {
	return s.TokenizeWithMode(value, StandardMode)
}

func (s *TokenizationService) TokenizeWithMode(value string, mode TokenizationMode) (string, error) {
	if mode == FormatPreservingMode {
		return s.formatPreservingTokenize(value)
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Detokenize picks the mode from the token prefix.
func (s *TokenizationService) Detokenize(token string) (string, error) {
	if IsToken(token) {
		return s.formatPreservingDetokenize(token)
	}
	return s.standardDetokenize(token)
}

func (s *TokenizationService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *TokenizationService) standardDetokenize(token string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: token too short", ErrInvalidToken)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(plaintext), nil
}

// formatPreservingTokenize derives the visible part from an HMAC of the value, so the
// same key always masks the same way, and appends the sealed original.
func (s *TokenizationService) formatPreservingTokenize(value string) (string, error) {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(value))
	visible := maskWithFormat(h.Sum(nil), value)

	sealed, err := s.Tokenize(value)
	if err != nil {
		return "", err
	}
	return tokenPrefix + visible + ":" + sealed, nil
}

func (s *TokenizationService) formatPreservingDetokenize(token string) (string, error) {
	// the visible part may itself contain ':', the sealed part never does
	idx := strings.LastIndex(token, ":")
	if !IsToken(token) || idx < len(tokenPrefix) {
		return "", fmt.Errorf("%w: not a format preserving token", ErrInvalidToken)
	}
	return s.standardDetokenize(token[idx+1:])
}

func maskWithFormat(seed []byte, value string) string {
	runes := []rune(value)
	result := make([]rune, len(runes))

	for i, char := range runes {
		b := seed[i%len(seed)]
		switch {
		case 'A' <= char && char <= 'Z':
			result[i] = 'A' + rune(b%26)
		case 'a' <= char && char <= 'z':
			result[i] = 'a' + rune(b%26)
		case '0' <= char && char <= '9':
			result[i] = '0' + rune(b%10)
		default:
			result[i] = char
		}
	}
	return string(result)
}
