// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
)

// CookieName is the cookie carrying the session token.
const CookieName = "auth_token"

// ErrNoToken is returned when a request carries neither a cookie nor a bearer token.
var ErrNoToken = errors.New("missing auth token")

var (
	mu         sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens stay valid (0 => never expire).
	tokenTTL time.Duration
)

// Init generates a fresh ed25519 key pair at runtime and sets the token lifetime.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	privateKey, publicKey, tokenTTL = priv, pub, ttl
	return nil
}

// InitFromPath reads ed25519 private/public keys from file and sets the token lifetime.
func InitFromPath(privatePath, publicPath string, ttl time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("key files are not raw ed25519 keys")
	}

	mu.Lock()
	defer mu.Unlock()
	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenTTL = ttl
	return nil
}

// CreateJWT signs a token with "sub" = user id and "name" = display name. An "exp" claim is only set
// when a lifetime is configured.
func CreateJWT(user models.User) (string, error) {
	mu.RLock()
	defer mu.RUnlock()
	if privateKey == nil {
		return "", fmt.Errorf("auth keys not initialized")
	}

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"name": user.Username,
		"iat":  time.Now().Unix(),
	}
	if tokenTTL != 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns the identity it carries.
func AuthenticateJWT(tokenString string) (models.User, error) {
	mu.RLock()
	key := publicKey
	mu.RUnlock()

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return models.User{}, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return models.User{}, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return models.User{}, fmt.Errorf("missing sub in jwt")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return models.User{}, fmt.Errorf("invalid user id in token: %w", err)
	}
	name, _ := claims["name"].(string)
	return models.User{ID: id, Username: name}, nil
}

// TokenFromRequest returns the session token from the auth cookie or an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// UserFromRequest authenticates the caller of r.
func UserFromRequest(r *http.Request) (models.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return models.User{}, ErrNoToken
	}
	return AuthenticateJWT(token)
}
