package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/qfilter/qfilter"
	"github.com/nonibytes/qfilter/store"
	"github.com/nonibytes/qfilter/store/storage/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, withStore bool) *gin.Engine {
	t.Helper()
	return newTestRouterWith(t, withStore, Options{})
}

func newTestRouterWith(t *testing.T, withStore bool, opts Options) *gin.Engine {
	t.Helper()
	b, err := qfilter.New(qfilter.Options{Exclude: qfilter.FieldList{"page"}})
	require.NoError(t, err)

	var st *store.Store
	if withStore {
		st, err = store.Create(context.Background(), sqlite.New(filepath.Join(t.TempDir(), "api.db")), store.DefaultOptions())
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
	}
	return NewRouter(NewHandler(b, st, opts))
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFilterRoute(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, false)

	cases := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{
			name:   "binding",
			query:  "price__lte=7.8&is_verified=false&has_evolved=true&__binding__=(price__lte|is_verified)+has_evolved",
			status: http.StatusOK,
			body:   `{"$and":[{"$or":[{"price":{"$lte":7.8}},{"is_verified":false}]},{"has_evolved":true}]}`,
		},
		{
			name:   "implicit and with exclusion",
			query:  "age__gte=18&age__lt=65&page=2",
			status: http.StatusOK,
			body:   `{"age":{"$gte":18,"$lt":65}}`,
		},
		{name: "empty", query: "", status: http.StatusOK, body: `{}`},
		{name: "bad binding", query: "a=1&__binding__=(a", status: http.StatusBadRequest},
		{name: "unknown operator", query: "a__foo=1", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodGet, "/filter?"+tc.query, "")
			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.body != "" {
				assert.JSONEq(t, tc.body, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestFilterRouteSingleParam(t *testing.T) {
	t.Parallel()
	r := newTestRouterWith(t, false, Options{Metrics: NewMetrics()})

	w := do(t, r, http.MethodGet, "/filter?a=1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"a":1}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/filter?c=&a=1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"a":1}`, w.Body.String())
}

func TestDocumentsWithoutStore(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/collections/users/documents", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/collections", "").Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/health", "").Code)
}

func TestDocumentRoutes(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, true)

	docs := map[string]string{
		"u1": `{"name":"Ann","age":34,"is_verified":true}`,
		"u2": `{"name":"Bob","age":17,"is_verified":false}`,
		"u3": `{"name":"Cy","age":70,"is_verified":false}`,
	}
	for _, id := range []string{"u1", "u2", "u3"} {
		w := do(t, r, http.MethodPut, "/collections/users/documents/"+id, docs[id])
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := do(t, r, http.MethodPut, "/collections/users/documents/bad", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/collections/users/documents/u2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view store.DocumentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "u2", view.ID)
	assert.JSONEq(t, docs["u2"], string(view.DocJSON))

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/collections/users/documents/nope", "").Code)

	w = do(t, r, http.MethodGet, "/collections/users/count?age__gte=18", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/collections", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"users","count":3}]`, w.Body.String())

	w = do(t, r, http.MethodGet, "/collections/users/fields?age__gte=18", "")
	require.Equal(t, http.StatusOK, w.Code)
	var fields []store.FieldOverview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	require.Len(t, fields, 3)
	assert.Equal(t, "age", fields[0].Field)
	assert.EqualValues(t, 2, fields[0].DocCount)

	w = do(t, r, http.MethodGet, "/collections/users/values/is_verified?_top=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"value":false,"count":2}]`, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/collections/users/values/age?_top=x", "").Code)

	w = do(t, r, http.MethodGet, "/collections/users/stats/age?is_verified=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"field":"age","count":2,"min":17,"max":70,"avg":43.5,"median":43.5}`, w.Body.String())

	w = do(t, r, http.MethodDelete, "/collections/users/documents/u3", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/collections/users/documents/u3", "").Code)
}

func TestFindDocumentsPaging(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, true)

	for i, name := range []string{"a", "b", "c", "d"} {
		body := `{"name":"` + name + `","n":` + strconv.Itoa(i+1) + `}`
		require.Equal(t, http.StatusOK, do(t, r, http.MethodPut, "/collections/items/documents/"+name, body).Code)
	}

	page := func(query string) store.FindResult {
		t.Helper()
		w := do(t, r, http.MethodGet, "/collections/items/documents?"+query, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res store.FindResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		return res
	}
	names := func(res store.FindResult) []string {
		var out []string
		for _, it := range res.Items {
			out = append(out, it.ID)
		}
		return out
	}

	first := page("n__gte=2&_limit=2")
	assert.Equal(t, []string{"b", "c"}, names(first))
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	second := page("n__gte=2&_limit=2&_after=" + url.QueryEscape(first.NextCursor))
	assert.Equal(t, []string{"d"}, names(second))
	assert.False(t, second.HasMore)

	recent := page("_order=recency&_limit=1&_explain=true")
	assert.Equal(t, []string{"d"}, names(recent))
	assert.NotEmpty(t, recent.ExplainSQL)

	orExpr := page("name=a&n=4&__binding__=name|n")
	assert.Equal(t, []string{"a", "d"}, names(orExpr))
}

func TestFindDocumentsErrors(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, true)

	for _, q := range []string{
		"_limit=ten",
		"_explain=maybe",
		"_order=random",
		"_after=not-a-cursor",
		"a=1&__binding__=a+",
	} {
		w := do(t, r, http.MethodGet, "/collections/users/documents?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestCreateDocument(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, true)

	w := do(t, r, http.MethodPost, "/collections/events/documents", `{"kind":"login"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	w = do(t, r, http.MethodGet, "/collections/events/documents/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/collections/events/documents", `"scalar"`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()
	r := newTestRouterWith(t, false, Options{Metrics: NewMetrics()})

	require.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/filter?age=1", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/filter?a__foo=1", "").Code)

	w := do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `qfilter_filters_built_total{result="ok"} 1`)
	assert.Contains(t, body, `qfilter_filters_built_total{result="operator"} 1`)
	assert.Contains(t, body, `qfilter_http_requests_total{method="GET",route="/filter",status="200"} 1`)
	assert.Contains(t, body, `qfilter_http_requests_total{method="GET",route="/filter",status="400"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t, false)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/metrics", "").Code)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	r := newTestRouterWith(t, false, Options{RateLimit: 60, RateBurst: 2})

	from := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = ip + ":4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, from("192.0.2.1"))
	assert.Equal(t, http.StatusOK, from("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, from("192.0.2.1"))
	assert.Equal(t, http.StatusOK, from("192.0.2.2"))
}
