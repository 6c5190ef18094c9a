package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// MinSecretLength is the minimum HMAC secret size in bytes.
const MinSecretLength = 32

// Claims carries the agent CIF of a verified bearer token.
type Claims struct {
	AgentCIF string `json:"agent_cif"`
	jwt.RegisteredClaims
}

// JWT verifies HMAC-signed bearer tokens issued by an external identity
// provider and resolves the agent_cif claim.
type JWT struct {
	secret []byte
	issuer string
}

// NewJWT creates a token resolver. An empty issuer skips the iss check.
func NewJWT(secret, issuer string) (*JWT, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	return &JWT{secret: []byte(secret), issuer: issuer}, nil
}

// Resolve verifies the Authorization bearer token.
func (j *JWT) Resolve(_ context.Context, hdr http.Header) (domain.AgentID, error) {
	auth := headerValue(hdr, HeaderAuth)
	if auth == "" {
		return "", fmt.Errorf("%w: missing authorization header", domain.ErrUnauthenticated)
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", fmt.Errorf("%w: authorization header must use Bearer scheme", domain.ErrUnauthenticated)
	}

	claims, err := j.Verify(strings.TrimSpace(auth[len(bearerPrefix):]))
	if err != nil {
		return "", err
	}
	return asAgent(claims.AgentCIF)
}

// Verify parses and validates a token string.
func (j *JWT) Verify(token string) (*Claims, error) {
	// exp is optional in RFC 7519; a token without one would never lapse.
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
			return nil, fmt.Errorf("%w: token has no expiry", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	return claims, nil
}

// Issue signs a token for agent valid for ttl. Used by operators to mint
// tokens for local testing; production tokens come from the identity provider.
func (j *JWT) Issue(agent domain.AgentID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AgentCIF: agent.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agent.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
