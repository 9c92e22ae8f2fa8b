package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tianqi-tools/weather-mcp/internal/observability"
)

// TokenSource supplies the bearer credential attached to every upstream
// request. Implementations must be safe for concurrent use.
type TokenSource interface {
	Token() (string, error)
}

// ErrInvalidPrivateKey is returned when the Ed25519 signing key cannot be
// parsed from PEM. This is fatal at startup, never at request time.
var ErrInvalidPrivateKey = errors.New("invalid Ed25519 private key")

const (
	// tokenLifetime keeps tokens valid for 23h, leaving an hour of slack
	// against the provider's 24h maximum.
	tokenLifetime = 82800 * time.Second

	// refreshMargin regenerates the token 5 minutes before expiry so
	// in-flight requests never carry a token about to lapse.
	refreshMargin = 300 * time.Second

	// issuedAtSkew backdates iat to tolerate clock drift between this
	// process and the provider.
	issuedAtSkew = 30 * time.Second
)

// StaticKey is the fixed-API-key credential mode. Token always returns the
// configured key unchanged.
type StaticKey string

func (k StaticKey) Token() (string, error) {
	return string(k), nil
}

// JWTManager issues short-lived EdDSA-signed tokens for the provider's JWT
// auth mode and caches them until shortly before expiry. The cached
// token/expiry pair is updated under a mutex so concurrent callers always
// observe a consistent pair.
type JWTManager struct {
	projectID string
	keyID     string
	key       ed25519.PrivateKey

	now func() time.Time // injectable for tests

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewJWTManager parses the PEM-encoded Ed25519 private key and returns a
// manager ready to sign. A key that fails to parse is rejected here so the
// process can fail fast instead of erroring on the first tool call.
func NewJWTManager(projectID, keyID, privateKeyPEM string) (*JWTManager, error) {
	key, err := jwt.ParseEdPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an Ed25519 key", ErrInvalidPrivateKey)
	}
	return &JWTManager{
		projectID: projectID,
		keyID:     keyID,
		key:       edKey,
		now:       time.Now,
	}, nil
}

// Token returns the cached token, regenerating it when absent or within the
// refresh margin of expiry.
func (m *JWTManager) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.token != "" && now.Before(m.expiresAt.Add(-refreshMargin)) {
		return m.token, nil
	}

	token, expiresAt, err := m.generate(now)
	if err != nil {
		return "", err
	}
	m.token = token
	m.expiresAt = expiresAt
	return m.token, nil
}

// generate signs a fresh token. Claims follow the provider contract:
// sub is the project ID, iat is backdated for clock skew, and the key ID
// travels in the kid header.
func (m *JWTManager) generate(now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(tokenLifetime)
	claims := jwt.MapClaims{
		"sub": m.projectID,
		"iat": now.Add(-issuedAtSkew).Unix(),
		"exp": expiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = m.keyID

	signed, err := tok.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	observability.TokenRefreshTotal.Inc()
	return signed, expiresAt, nil
}
