package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InitDataHeader carries Telegram.WebApp.initData from the Mini App.
const InitDataHeader = "X-Telegram-Init-Data"

var (
	errInitDataMissing = errors.New("init data missing")
	errInitDataInvalid = errors.New("init data signature mismatch")
	errInitDataExpired = errors.New("init data expired")
)

// initDataFromRequest reads the header, or "Authorization: tma <initData>".
func initDataFromRequest(r *http.Request) string {
	if v := r.Header.Get(InitDataHeader); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "tma ") {
		return strings.TrimPrefix(v, "tma ")
	}
	return ""
}

// verifyInitData checks the WebApp signature made with botToken and returns the
// Telegram user id it vouches for. maxAge <= 0 skips the auth_date check.
func verifyInitData(raw, botToken string, maxAge time.Duration, now time.Time) (int64, error) {
	if raw == "" {
		return 0, errInitDataMissing
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return 0, fmt.Errorf("parse init data: %w", err)
	}
	hash := vals.Get("hash")
	if hash == "" {
		return 0, errInitDataMissing
	}
	got, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(got, signInitData(vals, botToken)) {
		return 0, errInitDataInvalid
	}

	if maxAge > 0 {
		ts, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(ts, 0)) > maxAge {
			return 0, errInitDataExpired
		}
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(vals.Get("user")), &user); err != nil || user.ID == 0 {
		return 0, fmt.Errorf("init data has no user: %w", errInitDataInvalid)
	}
	return user.ID, nil
}

// signInitData computes the hash Telegram attaches to initData: HMAC-SHA256 of the sorted
// "key=value" lines (hash excluded), keyed by HMAC-SHA256("WebAppData", botToken).
func signInitData(vals url.Values, botToken string) []byte {
	lines := make([]string, 0, len(vals))
	for k := range vals {
		if k == "hash" {
			continue
		}
		lines = append(lines, k+"="+vals.Get(k))
	}
	sort.Strings(lines)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}
