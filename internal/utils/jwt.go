package utils // package utils provides helpers for admin session tokens, hashing and file names

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/iliyamo/donor-registry/internal/model"
)

// ErrInvalidSession covers malformed, forged and expired admin tokens.
var ErrInvalidSession = errors.New("invalid or expired admin session")

const adminIssuer = "donor-registry/admin"

// adminClaims is the JWT body of an admin session.  The admin identity
// travels in the token, so validating a session needs no database call.
type adminClaims struct {
    Email string `json:"email"`
    Name  string `json:"name"`
    Role  string `json:"role"`
    jwt.RegisteredClaims
}

// IssueAdminSession signs an HS256 token for admin valid for ttl from now.
func IssueAdminSession(secret string, admin model.Admin, now time.Time, ttl time.Duration) (string, model.AdminSession, error) {
    now = now.UTC().Truncate(time.Second)
    sess := model.AdminSession{Admin: admin, LoginAt: now, ExpiresAt: now.Add(ttl)}
    claims := adminClaims{
        Email: admin.Email,
        Name:  admin.Name,
        Role:  admin.Role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   admin.ID,
            Issuer:    adminIssuer,
            IssuedAt:  jwt.NewNumericDate(sess.LoginAt),
            ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return "", model.AdminSession{}, err
    }
    return signed, sess, nil
}

// ParseAdminSession validates raw and returns the session it carries.
// now is the reference time for expiry.
func ParseAdminSession(secret, raw string, now time.Time) (model.AdminSession, error) {
    var claims adminClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidSession
        }
        return []byte(secret), nil
    },
        jwt.WithIssuer(adminIssuer),
        jwt.WithTimeFunc(func() time.Time { return now }),
        jwt.WithExpirationRequired(),
    )
    if err != nil || !tok.Valid || claims.Subject == "" {
        return model.AdminSession{}, ErrInvalidSession
    }
    return model.AdminSession{
        Admin:     model.Admin{ID: claims.Subject, Email: claims.Email, Name: claims.Name, Role: claims.Role},
        LoginAt:   claims.IssuedAt.Time.UTC(),
        ExpiresAt: claims.ExpiresAt.Time.UTC(),
    }, nil
}
