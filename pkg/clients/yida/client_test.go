package yida

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDingTalk struct {
	t            *testing.T
	tokenCalls   atomic.Int32
	searchBodies []map[string]any
	lastUpdate   map[string]any
	lastBatch    map[string]any
	rejectToken  string
	pages        []string
}

func (f *fakeDingTalk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	if r.URL.Path == tokenPath {
		n := f.tokenCalls.Add(1)
		assert.Equal(f.t, "key", body["appKey"])
		assert.Equal(f.t, "secret", body["appSecret"])
		_, _ = w.Write([]byte(`{"accessToken":"tok-` + string(rune('0'+n)) + `","expireIn":7200}`))
		return
	}

	token := r.Header.Get(tokenHeader)
	if token == "" || token == f.rejectToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"InvalidAuthentication","message":"token expired","requestid":"r1"}`))
		return
	}

	switch {
	case r.URL.Path == searchPath && r.Method == http.MethodPost:
		f.searchBodies = append(f.searchBodies, body)
		page := int(body["pageNumber"].(float64))
		if page <= len(f.pages) {
			_, _ = w.Write([]byte(f.pages[page-1]))
			return
		}
		_, _ = w.Write([]byte(`{"data":[],"currentPage":1,"totalCount":0}`))
	case r.URL.Path == instancesPath && r.Method == http.MethodPut:
		f.lastUpdate = body
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == instancesPath && r.Method == http.MethodPost:
		_, _ = w.Write([]byte(`{"result":"FINST-ONE"}`))
	case r.URL.Path == batchSavePath:
		f.lastBatch = body
		_, _ = w.Write([]byte(`{"result":["FINST-A","FINST-B"]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NotFound","message":"no route"}`))
	}
}

func newTestClient(t *testing.T, fake *fakeDingTalk, pageSize int) *Client {
	t.Helper()
	fake.t = t
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:     srv.URL,
		AppKey:      "key",
		AppSecret:   "secret",
		AppType:     "APP_TEST",
		SystemToken: "sys",
		UserID:      "u1",
		PageSize:    pageSize,
	})
}

func TestAccessTokenIsCached(t *testing.T) {
	fake := &fakeDingTalk{}
	client := newTestClient(t, fake, 10)
	ctx := context.Background()

	first, err := client.AccessToken(ctx)
	require.NoError(t, err)
	second, err := client.AccessToken(ctx)
	require.NoError(t, err)

	require.Equal(t, "tok-1", first)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestSearchAllPagesAndNormalizes(t *testing.T) {
	fake := &fakeDingTalk{pages: []string{
		`{"currentPage":1,"totalCount":3,"data":[
			{"formInstanceId":"FINST-1","formData":{"textField_code":"P1","numberField_qty":1.10}},
			{"formInstanceId":"FINST-2","formData":"{\"textField_code\":\"P1\",\"numberField_qty\":2}"}
		]}`,
		`{"result":{"totalCount":3,"data":[{"formInstId":"FINST-3","formData":{"numberField_qty":"3"}}]}}`,
	}}
	client := newTestClient(t, fake, 2)

	rows, err := client.SearchAll(context.Background(), "FORM-INV", map[string]any{"textField_code": "P1"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"FINST-1", "FINST-2", "FINST-3"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	require.Equal(t, json.Number("1.10"), rows[0].Data["numberField_qty"])
	require.Equal(t, "P1", rows[1].Data["textField_code"])

	require.Len(t, fake.searchBodies, 2)
	require.Equal(t, "FORM-INV", fake.searchBodies[0]["formUuid"])
	require.Equal(t, "APP_TEST", fake.searchBodies[0]["appType"])
	require.JSONEq(t, `{"textField_code":"P1"}`, fake.searchBodies[0]["searchFieldJson"].(string))
}

func TestSearchTreatsUnknownEnvelopeAsEmpty(t *testing.T) {
	fake := &fakeDingTalk{pages: []string{`{"success":true}`}}
	client := newTestClient(t, fake, 10)

	rows, err := client.SearchAll(context.Background(), "FORM", nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestUpdateAndBatchCreate(t *testing.T) {
	fake := &fakeDingTalk{}
	client := newTestClient(t, fake, 10)
	ctx := context.Background()

	err := client.UpdateInstance(ctx, "FORM", "FINST-9", map[string]any{"radioField_status": "已用完"})
	require.NoError(t, err)
	require.Equal(t, "FINST-9", fake.lastUpdate["formInstanceId"])
	require.JSONEq(t, `{"radioField_status":"已用完"}`, fake.lastUpdate["updateFormDataJson"].(string))

	ids, err := client.BatchCreateInstances(ctx, "FORM", []map[string]any{{"a": 1}, {"a": 2}})
	require.NoError(t, err)
	require.Equal(t, []string{"FINST-A", "FINST-B"}, ids)
	list := fake.lastBatch["formDataJsonList"].([]any)
	require.Len(t, list, 2)
	require.JSONEq(t, `{"a":1}`, list[0].(string))
	require.Equal(t, true, fake.lastBatch["keepRunningAfterException"])

	id, err := client.CreateInstance(ctx, "FORM", map[string]any{"a": 3})
	require.NoError(t, err)
	require.Equal(t, "FINST-ONE", id)

	none, err := client.BatchCreateInstances(ctx, "FORM", nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUnauthorizedRefreshesTokenOnce(t *testing.T) {
	fake := &fakeDingTalk{rejectToken: "tok-1"}
	client := newTestClient(t, fake, 10)

	err := client.UpdateInstance(context.Background(), "FORM", "FINST-1", map[string]any{"x": 1})
	require.NoError(t, err)
	require.Equal(t, int32(2), fake.tokenCalls.Load())
}

func TestAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == tokenPath {
			_, _ = w.Write([]byte(`{"accessToken":"tok","expireIn":7200}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"InvalidParameter","message":"formUuid invalid"}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Options{BaseURL: srv.URL, AppKey: "key", AppSecret: "secret"})

	err := client.UpdateInstance(context.Background(), "FORM", "FINST-1", map[string]any{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "InvalidParameter", apiErr.Code)
	require.False(t, IsUnauthorized(err))
}

func TestAccessTokenRequiresCredentials(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.AccessToken(context.Background())
	require.ErrorContains(t, err, "app key and secret")
}

func TestMemoryTokenCacheExpires(t *testing.T) {
	cache := NewMemoryTokenCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisTokenCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisTokenCache(rdb)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "shared", time.Minute))
	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "shared", got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "again", time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
