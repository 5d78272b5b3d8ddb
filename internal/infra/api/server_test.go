//go:build !integration

package api_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/infra/api"
	"telegram-miniapp/internal/infra/memory"
	red "telegram-miniapp/internal/infra/redis"
	"telegram-miniapp/internal/infra/worker"
	"telegram-miniapp/internal/usecase"
)

const testAPIKey = "test-admin-key"

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type recordingChannel struct {
	mu   sync.Mutex
	sent []string
}

func (c *recordingChannel) Send(ctx context.Context, address, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, address)
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type testEnv struct {
	handler http.Handler
	dir     *memory.AddressDirectory
	channel *recordingChannel
}

func newTestEnv(t *testing.T, limiter *red.RateLimiter) *testEnv {
	t.Helper()
	return newTestEnvWithOptions(t, limiter, api.Options{APIKey: testAPIKey, RateLimit: 2, RateLimitWindow: time.Minute})
}

func newTestEnvWithOptions(t *testing.T, limiter *red.RateLimiter, opts api.Options) *testEnv {
	t.Helper()
	logger := newLogger()
	dir := memory.NewAddressDirectory()
	ch := &recordingChannel{}
	subs := memory.NewSubscriberRepo()

	notifier := usecase.NewNotificationUseCase(dir, ch, logger, true)
	services := usecase.NewServiceUseCase(notifier, ch, subs, memory.NewRequestLog(10),
		usecase.ServiceOptions{BookURL: "https://example.com/book.pdf"}, logger)

	pool := worker.NewPool(1, 16, logger)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	broadcast := usecase.NewBroadcastUseCase(subs, notifier, pool, nil, 1000, logger)

	auth := api.NewAuthManager("test-secret", false, "", time.Minute)
	srv := api.NewServer(notifier, services, broadcast, dir, auth, limiter, opts, logger)
	return &testEnv{handler: srv.Router(), dir: dir, channel: ch}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/admin/login", `{"api_key":"`+testAPIKey+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func serviceBody(service string, userID int64, email string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"service": service,
		"user":    map[string]interface{}{"id": userID, "first_name": "Ada", "email": email},
	})
	return string(b)
}

func TestHealthAndTraceID(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServiceEndpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("book download delivers to a recorded chat", func(t *testing.T) {
		env := newTestEnv(t, nil)
		require.NoError(t, env.dir.RecordAddress(ctx, "42", "4242"))

		rec := env.do(t, http.MethodPost, "/api/service", serviceBody("book_download", 42, ""), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp model.ServiceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, model.StatusSuccess, resp.Status)
		assert.Equal(t, "https://example.com/book.pdf", resp.URL)
		assert.True(t, resp.Delivered)
		assert.Equal(t, 1, env.channel.count())
	})

	t.Run("unknown user is answered but not notified", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(t, http.MethodPost, "/api/service", serviceBody("one_on_one", 7, ""), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp model.ServiceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Delivered)
		assert.Equal(t, 0, env.channel.count())
	})

	t.Run("validation failures never reach the core", func(t *testing.T) {
		env := newTestEnv(t, nil)
		for _, body := range []string{
			`not json`,
			serviceBody("tarot", 42, ""),
			serviceBody("book_download", 0, ""),
			serviceBody("newsletter", 42, "not-an-email"),
		} {
			rec := env.do(t, http.MethodPost, "/api/service", body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Contains(t, rec.Body.String(), `"status":"error"`)
		}
		assert.Equal(t, 0, env.channel.count())
	})

	t.Run("duplicate newsletter signup conflicts", func(t *testing.T) {
		env := newTestEnv(t, nil)
		body := serviceBody("newsletter", 42, "ada@example.com")
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/service", body, "").Code)

		rec := env.do(t, http.MethodPost, "/api/service", body, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already subscribed")
	})

	t.Run("rate limited per user and service", func(t *testing.T) {
		mr := miniredis.RunT(t)
		limiter := red.NewRateLimiter(red.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()})))
		env := newTestEnv(t, limiter)

		body := serviceBody("one_on_one", 42, "")
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/service", body, "").Code)
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/service", body, "").Code)
		assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/service", body, "").Code)

		other := serviceBody("one_on_one", 43, "")
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/service", other, "").Code)
	})
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("no credentials -> 401", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/admin/addresses/42", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token -> 401", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/admin/addresses/42", "", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong api key -> 403", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/admin/login", `{"api_key":"nope"}`, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("login sets session cookie", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/admin/login", `{"api_key":"`+testAPIKey+`"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, "admin_session", cookies[0].Name)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/addresses/42", nil)
		req.AddCookie(cookies[0])
		out := httptest.NewRecorder()
		env.handler.ServeHTTP(out, req)
		assert.Equal(t, http.StatusNotFound, out.Code)
	})
}

func TestAdminAddressAndNotify(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	token := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/admin/notify", `{"user_id":"42","message":"hi"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var res model.DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Delivered)
	assert.Equal(t, model.DeliveryNoAddress, res.Reason)

	require.NoError(t, env.dir.RecordAddress(ctx, "42", "4242"))

	rec = env.do(t, http.MethodGet, "/api/admin/addresses/42", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"42","address":"4242"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/admin/notify", `{"user_id":"42","message":"hi"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Delivered)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/addresses/42", "", token).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/admin/addresses/42", "", token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/admin/addresses/42", "", token).Code)

	rec = env.do(t, http.MethodPost, "/api/admin/notify", `{"user_id":"","message":"hi"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminBroadcast(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	token := env.login(t)

	require.NoError(t, env.dir.RecordAddress(ctx, "42", "4242"))
	body := serviceBody("newsletter", 42, "ada@example.com")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/service", body, "").Code)
	sentBefore := env.channel.count()

	payload, _ := json.Marshal(map[string]string{"subject": "News", "body": "Chapter 2"})
	rec := env.do(t, http.MethodPost, "/api/admin/broadcast", string(payload), token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"queued":1}`, rec.Body.String())

	assert.Eventually(t, func() bool { return env.channel.count() == sentBefore+1 }, 3*time.Second, 10*time.Millisecond)

	rec = env.do(t, http.MethodPost, "/api/admin/broadcast", `{"subject":"x"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceEndpoint_InitData(t *testing.T) {
	const token = "123456:test-token"
	env := newTestEnvWithOptions(t, nil, api.Options{APIKey: testAPIKey, InitDataToken: token, InitDataMaxAge: time.Hour})

	sign := func(userID int64) string {
		vals := url.Values{}
		vals.Set("user", `{"id":`+strconv.FormatInt(userID, 10)+`}`)
		vals.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
		lines := []string{"auth_date=" + vals.Get("auth_date"), "user=" + vals.Get("user")}
		secret := hmac.New(sha256.New, []byte("WebAppData"))
		secret.Write([]byte(token))
		mac := hmac.New(sha256.New, secret.Sum(nil))
		mac.Write([]byte(strings.Join(lines, "\n")))
		vals.Set("hash", hex.EncodeToString(mac.Sum(nil)))
		return vals.Encode()
	}
	post := func(initData string, userID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/service", strings.NewReader(serviceBody("book_download", userID, "")))
		req.Header.Set("Content-Type", "application/json")
		if initData != "" {
			req.Header.Set(api.InitDataHeader, initData)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("unsigned request is rejected", func(t *testing.T) {
		rec := post("", 42)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, env.channel.count())
	})

	t.Run("body cannot name another user", func(t *testing.T) {
		require.NoError(t, env.dir.RecordAddress(context.Background(), "7", "700"))
		rec := post(sign(42), 7)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, env.channel.count())
	})

	t.Run("signed request for the same user is served", func(t *testing.T) {
		rec := post(sign(42), 42)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
