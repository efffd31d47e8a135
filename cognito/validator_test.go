package cognito

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRegion   = "us-east-1"
	testPoolID   = "us-east-1_test123"
	testClientID = "test-client-id"
	testKid      = "test-kid-123"
)

// Test helper to generate RSA key pair
func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

// Test helper to create a mock JWKS server
func createMockJWKSServer(t *testing.T, publicKey *rsa.PublicKey, kid string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nBytes := publicKey.N.Bytes()
		eBytes := big.NewInt(int64(publicKey.E)).Bytes()

		jwks := JWKS{
			Keys: []JWK{
				{
					Kid: kid,
					Kty: "RSA",
					Alg: "RS256",
					Use: "sig",
					N:   base64.RawURLEncoding.EncodeToString(nBytes),
					E:   base64.RawURLEncoding.EncodeToString(eBytes),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
}

type tokenOpts struct {
	tokenUse string
	clientID string
	issuer   string
	expires  time.Duration
	kid      string
}

// Test helper to create a signed access token
func createTestToken(t *testing.T, privateKey *rsa.PrivateKey, opts tokenOpts) (string, string) {
	if opts.tokenUse == "" {
		opts.tokenUse = "access"
	}
	if opts.clientID == "" {
		opts.clientID = testClientID
	}
	if opts.issuer == "" {
		opts.issuer = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", testRegion, testPoolID)
	}
	if opts.expires == 0 {
		opts.expires = time.Hour
	}
	if opts.kid == "" {
		opts.kid = testKid
	}

	now := time.Now()
	sub := uuid.New().String()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    opts.issuer,
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.expires)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Sub:      sub,
		TokenUse: opts.tokenUse,
		ClientID: opts.clientID,
		Username: "testuser",
		AuthTime: now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = opts.kid

	tokenString, err := token.SignedString(privateKey)
	require.NoError(t, err)

	return tokenString, sub
}

func newTestValidator(serverURL string) *Validator {
	return &Validator{
		region:       testRegion,
		userPoolID:   testPoolID,
		clientID:     testClientID,
		jwksURL:      serverURL,
		jwksCacheTTL: time.Hour,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		keyCache:     make(map[string]*rsa.PublicKey),
	}
}

func TestNewValidator(t *testing.T) {
	v := NewValidator(Config{
		Region:     testRegion,
		UserPoolID: testPoolID,
		ClientID:   testClientID,
	})

	assert.NotNil(t, v)
	assert.Contains(t, v.jwksURL, testPoolID)
	assert.NotNil(t, v.httpClient)
	assert.NotNil(t, v.keyCache)
}

func TestValidateToken(t *testing.T) {
	privateKey, publicKey := generateTestKeyPair(t)
	server := createMockJWKSServer(t, publicKey, testKid)
	defer server.Close()

	ctx := context.Background()

	t.Run("valid access token returns claims with subject", func(t *testing.T) {
		v := newTestValidator(server.URL)
		token, sub := createTestToken(t, privateKey, tokenOpts{})

		claims, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, sub, claims.Sub)
		assert.Equal(t, "access", claims.TokenUse)
		assert.Equal(t, "testuser", claims.Username)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)
		token, _ := createTestToken(t, privateKey, tokenOpts{expires: -time.Minute})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("id token is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)
		token, _ := createTestToken(t, privateKey, tokenOpts{tokenUse: "id"})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidTokenUse)
	})

	t.Run("wrong client binding is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)
		token, _ := createTestToken(t, privateKey, tokenOpts{clientID: "someone-elses-client"})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("wrong issuer is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)
		token, _ := createTestToken(t, privateKey, tokenOpts{
			issuer: "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_other",
		})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("tampered signature is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)
		otherKey, _ := generateTestKeyPair(t)
		token, _ := createTestToken(t, otherKey, tokenOpts{})

		_, err := v.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed token is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)

		_, err := v.ValidateToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown kid is rejected", func(t *testing.T) {
		v := newTestValidator(server.URL)
		token, _ := createTestToken(t, privateKey, tokenOpts{kid: "unknown-kid"})

		_, err := v.ValidateToken(ctx, token)
		assert.Error(t, err)
	})
}

func TestFetchJWKSCaching(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)

	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		nBytes := publicKey.N.Bytes()
		eBytes := big.NewInt(int64(publicKey.E)).Bytes()
		jwks := JWKS{Keys: []JWK{{
			Kid: testKid, Kty: "RSA", Alg: "RS256", Use: "sig",
			N: base64.RawURLEncoding.EncodeToString(nBytes),
			E: base64.RawURLEncoding.EncodeToString(eBytes),
		}}}
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer server.Close()

	v := newTestValidator(server.URL)
	ctx := context.Background()

	_, err := v.FetchJWKS(ctx)
	require.NoError(t, err)
	_, err = v.FetchJWKS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches, "second fetch should be served from cache")

	v.InvalidateCache()
	_, err = v.FetchJWKS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
}

func TestFetchJWKSServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := newTestValidator(server.URL)
	_, err := v.FetchJWKS(context.Background())
	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}
