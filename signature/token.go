package signature

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenHeader carries the callback token on queue callback requests.
const TokenHeader = "Upstash-Signature"

// TokenIssuer is the iss claim of callback tokens.
const TokenIssuer = "Upstash"

// ErrInvalidToken is returned when a callback token fails verification.
var ErrInvalidToken = errors.New("signature: invalid callback token")

// callbackClaims binds a token to the request URL and a hash of its body.
type callbackClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// IssueCallbackToken signs a token for a callback request to callbackURL
// carrying body.
func IssueCallbackToken(key, callbackURL string, body []byte, ttl time.Duration) (string, error) {
	if key == "" {
		return "", ErrEmptySecret
	}
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("signature: token id: %w", err)
	}
	now := time.Now()
	claims := callbackClaims{
		Body: bodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   callbackURL,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        hex.EncodeToString(jti),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// TokenVerifier checks callback tokens against a current and an optional
// next signing key, so keys can be rotated without dropping callbacks.
type TokenVerifier struct {
	currentKey string
	nextKey    string
}

// NewTokenVerifier returns a verifier for the given keys.
func NewTokenVerifier(currentKey, nextKey string) *TokenVerifier {
	return &TokenVerifier{currentKey: currentKey, nextKey: nextKey}
}

// Verify validates token for a request carrying body. When callbackURL is
// non-empty the token subject must equal it.
func (v *TokenVerifier) Verify(token, callbackURL string, body []byte) error {
	return v.verify(token, body, func(subject string) error {
		if callbackURL != "" && subject != callbackURL {
			return fmt.Errorf("%w: subject %q does not match %q", ErrInvalidToken, subject, callbackURL)
		}
		return nil
	})
}

// VerifyQuery validates token for a request carrying body and query. Every
// name in params must have the same value in query as in the query of the
// token subject. Host and path of the subject are not compared, so proxies
// may rewrite them.
func (v *TokenVerifier) VerifyQuery(token string, query url.Values, params []string, body []byte) error {
	return v.verify(token, body, func(subject string) error {
		u, err := url.Parse(subject)
		if err != nil {
			return fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
		}
		want := u.Query()
		for _, p := range params {
			if query.Get(p) != want.Get(p) {
				return fmt.Errorf("%w: %s does not match token subject", ErrInvalidToken, p)
			}
		}
		return nil
	})
}

func (v *TokenVerifier) verify(token string, body []byte, checkSubject func(string) error) error {
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrInvalidToken)
	}
	err := verifyWithKey(token, v.currentKey, body, checkSubject)
	if err == nil || v.nextKey == "" {
		return err
	}
	if nextErr := verifyWithKey(token, v.nextKey, body, checkSubject); nextErr == nil {
		return nil
	}
	return err
}

func verifyWithKey(token, key string, body []byte, checkSubject func(string) error) error {
	if key == "" {
		return fmt.Errorf("%w: no signing key configured", ErrInvalidToken)
	}

	claims := &callbackClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(key), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithLeeway(5*time.Second))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	if err := checkSubject(claims.Subject); err != nil {
		return err
	}
	if claims.Body != bodyHash(body) {
		return fmt.Errorf("%w: body hash mismatch", ErrInvalidToken)
	}
	return nil
}
