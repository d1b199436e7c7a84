package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	headerRequestID = "Ax-Request-Id"
	headerRequestAt = "Ax-Request-At"
	headerReplay    = "Ax-Idempotent-Replay"
)

var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-5][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

func digest(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

// responseKey scopes a request id to the route and the caller. The user id
// is hashed so arbitrary subjects stay key-safe.
func responseKey(method, route, userID, requestID string) string {
	return "idemp:ax:" + strings.ToLower(method) + ":" + route + ":" + digest([]byte(userID))[:16] + ":" + requestID
}

func validRequestID(id string) bool {
	return reUUID.MatchString(id) || reHex32.MatchString(id)
}

// parseRequestAt accepts epoch seconds, epoch milliseconds, or RFC3339 with a
// zone. Naive local timestamps are rejected.
func parseRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing " + headerRequestAt)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New(headerRequestAt + " must be epoch (s/ms) or RFC3339 with timezone")
}

// requestMeta is what a mutating request must carry to be deduplicated.
type requestMeta struct {
	ID string
	At time.Time
}

func readRequestMeta(h http.Header, now time.Time, skew time.Duration) (requestMeta, error) {
	id := strings.TrimSpace(h.Get(headerRequestID))
	switch {
	case id == "":
		return requestMeta{}, errors.New("missing " + headerRequestID)
	case !validRequestID(id):
		return requestMeta{}, errors.New("invalid " + headerRequestID + " format")
	}
	at, err := parseRequestAt(h.Get(headerRequestAt))
	if err != nil {
		return requestMeta{}, err
	}
	if at.Before(now.Add(-skew)) || at.After(now.Add(skew)) {
		return requestMeta{}, errors.New(headerRequestAt + " too skewed")
	}
	return requestMeta{ID: id, At: at}, nil
}
