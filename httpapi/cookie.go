package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/bizware/authcore"
)

// cookieCodec signs and verifies the device cookie value. The wire format is
// "value.base64url(mac)"; the device id itself stays readable, the MAC stops
// clients from minting or editing one.
type cookieCodec struct {
	secret []byte
}

func newCookieCodec(secret []byte) *cookieCodec {
	return &cookieCodec{secret: secret}
}

func (c *cookieCodec) mac(value string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(value))
	return h.Sum(nil)
}

// Sign wraps a raw value for transport.
func (c *cookieCodec) Sign(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(c.mac(value))
}

// Verify unwraps a signed cookie value. Tampered, truncated, and unsigned
// values all fail the same way.
func (c *cookieCodec) Verify(signed string) (string, error) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 {
		return "", authcore.ErrSignatureInvalid
	}
	value, encoded := signed[:idx], signed[idx+1:]

	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", authcore.ErrSignatureInvalid
	}
	if !hmac.Equal(sig, c.mac(value)) {
		return "", authcore.ErrSignatureInvalid
	}
	return value, nil
}
