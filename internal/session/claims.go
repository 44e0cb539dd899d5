package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoUserID = errors.New("access token carries no user id")

// userIDClaims lists the claims tried for the staff id. user_id is the
// backend's contract; sub and id are accepted from older token issuers.
var userIDClaims = []string{"user_id", "sub", "id"}

// UserIDFromToken reads the staff id from the payload of an access token.
// Only the payload segment is decoded: the header and signature are left to
// the backend, which checks them on every request.
func UserIDFromToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("decode access token: %w", jwt.ErrTokenMalformed)
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode access token payload: %w", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("decode access token claims: %w", err)
	}
	for _, name := range userIDClaims {
		if id := claimID(claims[name]); id != "" {
			return id, nil
		}
	}
	return "", ErrNoUserID
}

// claimID renders a claim as an id. Zero, empty and non-scalar values count
// as missing.
func claimID(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == 0 || val != math.Trunc(val) {
			return ""
		}
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		if n, err := val.Int64(); err == nil && n != 0 {
			return strconv.FormatInt(n, 10)
		}
	}
	return ""
}
