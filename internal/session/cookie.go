package session

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Clark-Hu/reelview/internal/domain"
)

const issuer = "reelview"

// Claims is the payload of a session cookie.
type Claims struct {
	UserID int64  `json:"uid"`
	Token  string `json:"tok,omitempty"`
	jwt.RegisteredClaims
}

// CookieStore keeps the whole session in an HS256-signed JWT cookie.
type CookieStore struct {
	secret []byte
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieStore requires a secret of at least 32 bytes.
func NewCookieStore(secret string, maxAge time.Duration, secure bool) (*CookieStore, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters")
	}
	return &CookieStore{secret: []byte(secret), maxAge: maxAge, secure: secure, now: time.Now}, nil
}

// Sign creates a signed token for sess with a fresh id.
func (s *CookieStore) Sign(sess domain.Session) (string, string, error) {
	now := s.now()
	id := uuid.NewString()
	claims := &Claims{
		UserID: int64(sess.UserID),
		Token:  sess.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   strconv.FormatInt(int64(sess.UserID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign session: %w", err)
	}
	return signed, id, nil
}

// Verify checks the signature, algorithm and expiry of a token.
func (s *CookieStore) Verify(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, fmt.Errorf("invalid session claims")
	}
	return claims, nil
}

// Load implements Store.
func (s *CookieStore) Load(r *http.Request) (Current, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Current{}, ErrNoSession
	}
	claims, err := s.Verify(c.Value)
	if err != nil {
		return Current{}, err
	}
	return Current{
		Session: domain.Session{UserID: domain.UserID(claims.UserID), Token: claims.Token},
		ID:      claims.ID,
	}, nil
}

// Save implements Store.
func (s *CookieStore) Save(w http.ResponseWriter, _ *http.Request, sess domain.Session) (Current, error) {
	signed, id, err := s.Sign(sess)
	if err != nil {
		return Current{}, err
	}
	http.SetCookie(w, sessionCookie(signed, s.maxAge, s.secure))
	return Current{Session: sess, ID: id}, nil
}

// Clear implements Store.
func (s *CookieStore) Clear(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, expiredCookie(s.secure))
	return nil
}
