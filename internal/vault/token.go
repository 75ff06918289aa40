package vault

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("vault: token invalid or expired")
	ErrIPMismatch   = errors.New("vault: token not valid from this address")
)

// Claims are the signed contents of a file access token. The token, not a
// server-side session, is the sole capability for retrieval: whoever holds
// a valid one (from the bound address, before expiry) gets the file.
type Claims struct {
	jwt.RegisteredClaims
	FileID       string `json:"fid"`
	OriginalName string `json:"fname"`
	MimeType     string `json:"fmime"`
	BoundIP      string `json:"bip"`
}

// TokenIssuer signs and verifies file access tokens.
type TokenIssuer struct {
	secret    []byte
	ttl       time.Duration
	ipBinding string
}

// NewTokenIssuer creates an issuer. ipBinding is "strict" (exact address
// match) or "subnet" (same /24 for IPv4, /64 for IPv6).
func NewTokenIssuer(secret []byte, ttl time.Duration, ipBinding string) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, ipBinding: ipBinding}
}

// Issue signs a token granting retrieval of fileID to clientIP until the
// TTL elapses.
func (ti *TokenIssuer) Issue(fileID, originalName, mimeType, clientIP string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
		FileID:       fileID,
		OriginalName: originalName,
		MimeType:     mimeType,
		BoundIP:      clientIP,
	})

	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry, then the IP binding. admin bypasses
// only the IP check: an administrator reviewing an upload works from a
// different address than the uploader, but an expired or forged token is
// dead for everyone.
func (ti *TokenIssuer) Verify(tokenString, callerIP string, admin bool) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return ti.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if !admin && !ti.ipMatches(claims.BoundIP, callerIP) {
		return nil, ErrIPMismatch
	}
	return claims, nil
}

func (ti *TokenIssuer) ipMatches(bound, caller string) bool {
	if bound == "" || caller == "" {
		return false
	}
	if ti.ipBinding != "subnet" {
		return bound == caller
	}

	boundIP := net.ParseIP(bound)
	callerIP := net.ParseIP(caller)
	if boundIP == nil || callerIP == nil {
		return bound == caller
	}
	if b4, c4 := boundIP.To4(), callerIP.To4(); b4 != nil && c4 != nil {
		mask := net.CIDRMask(24, 32)
		return b4.Mask(mask).Equal(c4.Mask(mask))
	}
	mask := net.CIDRMask(64, 128)
	return boundIP.Mask(mask).Equal(callerIP.Mask(mask))
}
