package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dispensary/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

var wednesday = time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	ReqID  string
	Body   map[string]any
}

type fakeBackend struct {
	*httptest.Server
	hits     atomic.Int32
	last     atomic.Pointer[recordedRequest]
	handlers map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T, handlers map[string]http.HandlerFunc) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{handlers: handlers}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		rec := &recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			ReqID:  r.Header.Get("X-Request-ID"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		fb.last.Store(rec)

		h, ok := fb.handlers[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"No such route"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func writeJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(baseURL string) *Client {
	c := NewClient(baseURL, zerolog.New(io.Discard))
	c.SetLocation(time.UTC)
	return c.WithToken(StaticToken(testToken))
}

func TestClient_UnauthenticatedSkipsNetwork(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/appointments/all": writeJSON(http.StatusOK, `[]`),
	})
	c := NewClient(fb.URL, zerolog.New(io.Discard))

	_, err := c.ListAll(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = c.AvailableSlots(context.Background(), wednesday)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, c.WithToken(StaticToken("")).Delete(context.Background(), 1), ErrUnauthenticated)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(0), fb.hits.Load())
}

func TestClient_ListRange(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/appointments": writeJSON(http.StatusOK, `[
			{"id":1,"date":"2026-01-14","time":"09:00:00","notes":"a","patientEmail":"a@x.com","appointmentStatus":"PENDING"},
			{"id":2,"date":"2026-01-14","time":"bogus"},
			{"id":3,"date":"2026-01-15","time":"10:05:00","patient":{"user":{"email":"b@x.com"}}}
		]`),
	})
	c := newTestClient(fb.URL)

	appts, err := c.ListRange(context.Background(), wednesday, wednesday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, int64(1), appts[0].ID)
	assert.Equal(t, model.StatusPending, appts[0].Status)
	assert.Equal(t, "b@x.com", appts[1].Patient.Email)
	assert.Equal(t, model.NewClock(10, 5), appts[1].Time)

	rec := fb.last.Load()
	assert.Equal(t, "Bearer "+testToken, rec.Auth)
	assert.Equal(t, "endDate=2026-01-21&startDate=2026-01-14", rec.Query)
	_, err = uuid.Parse(rec.ReqID)
	assert.NoError(t, err)
}

func TestClient_ErrorMessageVerbatim(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/appointments":     writeJSON(http.StatusConflict, `{"message":"This slot is already booked"}`),
		"DELETE /api/appointments/5": writeJSON(http.StatusInternalServerError, ``),
	})
	c := newTestClient(fb.URL)

	_, err := c.Create(context.Background(), wednesday, model.NewClock(9, 0), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "This slot is already booked", apiErr.UserMessage())
	assert.False(t, IsNotFound(err))

	err = c.Delete(context.Background(), 5)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Empty(t, apiErr.UserMessage())
}

func TestClient_GetNotFoundIsEmpty(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/appointments/7": writeJSON(http.StatusOK, `{"id":7,"date":[2026,1,14],"time":[9,30],"patient":{"email":"a@x.com"}}`),
	})
	c := newTestClient(fb.URL)

	a, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, wednesday, a.Date)
	assert.Equal(t, model.NewClock(9, 30), a.Time)

	a, err = c.Get(context.Background(), 8)
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestClient_CreateSendsWireBody(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/appointments/create-for-patient/42": writeJSON(http.StatusCreated,
			`{"id":9,"date":"2026-01-14","time":"09:15:00","appointmentType":"TAKE_MEDICINE","queueNumber":3,"patient":{"id":42,"email":"p@x.com"}}`),
	})
	c := newTestClient(fb.URL)

	a, err := c.CreateForPatient(context.Background(), 42, wednesday, model.NewClock(9, 15), model.TypeTakeMedicine, "insulin")
	require.NoError(t, err)
	assert.Equal(t, 3, a.QueueNumber)
	assert.Equal(t, int64(42), a.Patient.ID)

	rec := fb.last.Load()
	assert.Equal(t, map[string]any{
		"date":            "2026-01-14",
		"time":            "09:15:00",
		"appointmentType": "TAKE_MEDICINE",
		"notes":           "insulin",
	}, rec.Body)
}

func TestClient_EmptyResponseBody(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"PUT /api/appointments/3/status":                      writeJSON(http.StatusNoContent, ``),
		"PUT /api/appointments/cancel-all-by-date/2026-01-14": writeJSON(http.StatusOK, ``),
	})
	c := newTestClient(fb.URL)

	a, err := c.UpdateStatus(context.Background(), 3, model.StatusNoShow)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Equal(t, map[string]any{"status": "NO_SHOW"}, fb.last.Load().Body)

	require.NoError(t, c.CancelAllByDate(context.Background(), wednesday))
	assert.Equal(t, http.MethodPut, fb.last.Load().Method)
}

func TestClient_AvailableSlotsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var slotCalls atomic.Int32
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/appointments/available-slots": func(w http.ResponseWriter, r *http.Request) {
			slotCalls.Add(1)
			assert.Equal(t, "2026-01-14", r.URL.Query().Get("date"))
			writeJSON(http.StatusOK, `["09:00:00","09:05:00"]`)(w, r)
		},
		"POST /api/appointments": writeJSON(http.StatusOK, `{"id":1,"date":"2026-01-14","time":"09:00:00"}`),
	})
	c := newTestClient(fb.URL)
	c.UseRedisCache(rdb, time.Minute)

	for i := 0; i < 2; i++ {
		got, err := c.AvailableSlots(context.Background(), wednesday)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00:00", "09:05:00"}, got)
	}
	assert.Equal(t, int32(1), slotCalls.Load())
	assert.True(t, mr.Exists("dispensary:slots:2026-01-14"))

	_, err := c.Create(context.Background(), wednesday, model.NewClock(9, 0), "")
	require.NoError(t, err)
	assert.False(t, mr.Exists("dispensary:slots:2026-01-14"))

	_, err = c.AvailableSlots(context.Background(), wednesday)
	require.NoError(t, err)
	assert.Equal(t, int32(2), slotCalls.Load())
}

func TestClient_LoginIsPublic(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/auth/login": writeJSON(http.StatusOK, `{"token":"abc","role":"ROLE_DOCTOR"}`),
	})
	c := NewClient(fb.URL, zerolog.New(io.Discard))

	resp, err := c.Login(context.Background(), "doc@x.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Token)
	rec := fb.last.Load()
	assert.Empty(t, rec.Auth)
	assert.Equal(t, "doc@x.com", rec.Body["email"])
}

func TestClient_LoginRejected(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"POST /api/auth/login": writeJSON(http.StatusUnauthorized, `{"message":"Invalid credentials"}`),
	})
	c := NewClient(fb.URL, zerolog.New(io.Discard))

	_, err := c.Login(context.Background(), "doc@x.com", "wrong")
	assert.True(t, IsUnauthorized(err))
}

func TestClient_UnreadNotifications(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/notifications/unread-count": writeJSON(http.StatusOK, `{"count":4}`),
	})
	n, err := newTestClient(fb.URL).UnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	fb := newFakeBackend(t, map[string]http.HandlerFunc{
		"GET /api/appointments/all": writeJSON(http.StatusOK, `[]`),
	})
	c := newTestClient(fb.URL)
	c.UseRateLimit(0.001, 1)

	_, err := c.ListAll(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListAll(ctx)
	assert.Error(t, err)
	assert.Equal(t, int32(1), fb.hits.Load())
}
