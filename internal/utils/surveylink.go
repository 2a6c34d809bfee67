package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const surveyPurpose = "survey"

// ErrInvalidSurveyLink is returned for links that are malformed, signed
// with another key, minted for another purpose or expired.
var ErrInvalidSurveyLink = errors.New("invalid survey link")

// SurveyLink is a signed HS256 JWT that lets one technician open the
// self-service survey without logging in.
type SurveyLink struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSurveyLink signs a survey link for technicianID. The subject is the
// technician id and the purpose claim pins the token to the survey.
func NewSurveyLink(secret string, technicianID, issuedBy uint64, now time.Time, ttl time.Duration) (SurveyLink, error) {
	exp := now.UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":     strconv.FormatUint(technicianID, 10),
		"by":      strconv.FormatUint(issuedBy, 10),
		"purpose": surveyPurpose,
		"exp":     exp.Unix(),
		"iat":     now.UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SurveyLink{}, err
	}
	return SurveyLink{Token: signed, Exp: exp}, nil
}

// ParseSurveyLink verifies a survey link against secret at time now and
// returns the technician id it was minted for.
func ParseSurveyLink(secret, token string, now time.Time) (uint64, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSurveyLink, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != surveyPurpose {
		return 0, ErrInvalidSurveyLink
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, ErrInvalidSurveyLink
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidSurveyLink
	}
	return id, nil
}
