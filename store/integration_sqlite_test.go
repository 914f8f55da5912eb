package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/qfilter/qfilter"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/qfilter/mql"
	"github.com/nonibytes/qfilter/store"
	"github.com/nonibytes/qfilter/store/storage"
	"github.com/nonibytes/qfilter/store/storage/sqlite"
)

func monotonicNow(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newStore(t *testing.T, adapter storage.Adapter) *store.Store {
	t.Helper()

	opts := store.DefaultOptions()
	opts.Now = monotonicNow(time.Unix(1700000000, 0))

	s, err := store.Create(context.Background(), adapter, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	return newStore(t, sqlite.New(filepath.Join(t.TempDir(), "test.db")))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedUsers(t *testing.T, s *store.Store) *store.Collection {
	t.Helper()
	ctx := context.Background()

	users, err := s.Collection("users")
	require.NoError(t, err)

	docs := []struct {
		id  string
		doc map[string]any
	}{
		{"u1", map[string]any{
			"name": "Ann Smith", "age": 34, "email": "ann@example.com",
			"is_verified": true, "has_evolved": true, "created_at": day(2024, time.May, 1),
			"tags": []any{"admin", "dev"}, "price": 5.5, "owner": map[string]any{"city": "Oslo"},
		}},
		{"u2", map[string]any{
			"name": "Bob", "age": 17, "email": "bob@test.org",
			"is_verified": false, "has_evolved": true, "created_at": day(2024, time.June, 1),
			"tags": []any{"dev"}, "price": 9.0, "deleted": nil,
		}},
		{"u3", map[string]any{
			"name": "Cy", "age": 70, "email": "CY@EXAMPLE.COM",
			"is_verified": false, "has_evolved": false, "created_at": day(2024, time.April, 1),
			"tags": []any{}, "price": 7.8,
		}},
		{"u4", map[string]any{
			"name": "Dee", "age": 40,
			"is_verified": true, "has_evolved": false, "created_at": day(2024, time.July, 1),
			"owner": map[string]any{"city": "Rome"},
		}},
	}
	for _, d := range docs {
		require.NoError(t, users.Put(ctx, d.id, d.doc))
	}
	return users
}

func ids(items []store.DocumentView) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

// filterCases run against every backend.
var filterCases = []struct {
	query string
	want  []string
}{
	{"", []string{"u1", "u2", "u3", "u4"}},
	{"age__gte=18", []string{"u1", "u3", "u4"}},
	{"age__gte=18&age__lt=65", []string{"u1", "u4"}},
	{"is_verified=false", []string{"u2", "u3"}},
	{"name=Bob", []string{"u2"}},
	{"created_at__lt=2024-05-08", []string{"u1", "u3"}},
	{"created_at__lt=2024-05-08&is_verified=false&has_evolved=true&__binding__=created_at__lt|is_verified+has_evolved",
		[]string{"u1", "u2", "u3"}},
	{"age__lt=18&is_verified=true&has_evolved=false&__binding__=(age__lt|is_verified)+has_evolved",
		[]string{"u4"}},
	{"email__regex=example", []string{"u1", "u3"}},
	{"name__in=%5B%22Bob%22%2C%22Cy%22%5D", []string{"u2", "u3"}},
	{"tags__all=%5B%22dev%22%5D", []string{"u1", "u2"}},
	{"email__exists=false", []string{"u4"}},
	{"deleted__exists=true", []string{"u2"}},
	{"age__ne=17", []string{"u1", "u3", "u4"}},
	{"email__nin=%5B%22bob%40test.org%22%5D", []string{"u1", "u3", "u4"}},
	{"owner.city=Oslo", []string{"u1"}},
	{"price__lte=7.8", []string{"u1", "u3"}},
	{"age__gt=100", []string{}},
}

func runFilterCases(t *testing.T, users *store.Collection) {
	ctx := context.Background()
	for _, tt := range filterCases {
		res, err := users.FindQuery(ctx, tt.query, nil, nil, store.FindOptions{})
		require.NoError(t, err, tt.query)
		assert.Equal(t, tt.want, ids(res.Items), tt.query)
		assert.False(t, res.HasMore, tt.query)
	}
}

func TestFindQuery_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))
	runFilterCases(t, users)
}

func TestFindQuery_SQLiteMattnDriver(t *testing.T) {
	adapter := sqlite.NewWithDriver(filepath.Join(t.TempDir(), "test.db"), sqlite.DriverMattn)
	s, err := store.Create(context.Background(), adapter, store.DefaultOptions())
	if err != nil {
		t.Skipf("mattn driver unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	runFilterCases(t, seedUsers(t, s))
}

func TestFindWithOrCombinator_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))

	b, err := qfilter.New(qfilter.Options{Combinator: mql.OpOr})
	require.NoError(t, err)

	res, err := users.FindQuery(context.Background(), "age__lt=18&age__gt=65", b, nil, store.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, ids(res.Items))
}

func TestFindExcludesFields_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))

	res, err := users.FindQuery(context.Background(), "page=2&is_verified=true", nil, qfilter.FieldList{"page"}, store.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u4"}, ids(res.Items))
}

func TestPagination_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))
	ctx := context.Background()

	var got []string
	opts := store.FindOptions{Limit: 3}
	for i := 0; i < 3; i++ {
		res, err := users.Find(ctx, mql.Document{}, opts)
		require.NoError(t, err)
		got = append(got, ids(res.Items)...)
		if !res.HasMore {
			assert.Empty(t, res.NextCursor)
			break
		}
		require.NotEmpty(t, res.NextCursor)
		opts.After = res.NextCursor
	}
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, got)

	first, err := users.Find(ctx, mql.Document{}, store.FindOptions{Limit: 1})
	require.NoError(t, err)

	_, err = users.Find(ctx, mql.Document{"age": int64(1)}, store.FindOptions{Limit: 1, After: first.NextCursor})
	require.Error(t, err)
	assert.True(t, qerrors.IsKind(err, qerrors.ErrCursor))

	_, err = users.Find(ctx, mql.Document{}, store.FindOptions{After: "%%%"})
	assert.True(t, qerrors.IsKind(err, qerrors.ErrCursor))
}

func TestRecencyOrder_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))
	ctx := context.Background()

	require.NoError(t, users.Put(ctx, "u2", map[string]any{"name": "Bob", "age": 18}))

	res, err := users.Find(ctx, mql.Document{}, store.FindOptions{Order: store.OrderRecency, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u4"}, ids(res.Items))

	res, err = users.Find(ctx, mql.Document{}, store.FindOptions{Order: store.OrderRecency, After: res.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"u3", "u1"}, ids(res.Items))

	// a replaced document keeps its insertion position
	res, err = users.Find(ctx, mql.Document{}, store.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, ids(res.Items))

	_, err = users.Find(ctx, mql.Document{}, store.FindOptions{Order: "random"})
	assert.True(t, qerrors.IsKind(err, qerrors.ErrUnsupported))
}

func TestPutGetDelete_SQLite(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	users, err := s.Collection("users")
	require.NoError(t, err)

	require.NoError(t, users.PutJSON(ctx, "a", []byte(`{"n": 1, "when": "2024-01-01"}`)))
	view, err := users.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", view.ID)
	assert.JSONEq(t, `{"n": 1, "when": "2024-01-01"}`, string(view.DocJSON))
	assert.Equal(t, view.Meta.CreatedAtMS, view.Meta.UpdatedAtMS)

	require.NoError(t, users.Put(ctx, "a", map[string]any{"n": 2, "at": day(2024, time.March, 3)}))
	updated, err := users.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 2, "at": "2024-03-03T00:00:00.000000000Z"}`, string(updated.DocJSON))
	assert.Equal(t, view.Meta.CreatedAtMS, updated.Meta.CreatedAtMS)
	assert.Greater(t, updated.Meta.UpdatedAtMS, view.Meta.UpdatedAtMS)

	found, err := users.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = users.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = users.Get(ctx, "a")
	assert.True(t, qerrors.IsKind(err, qerrors.ErrNotFound))

	for _, bad := range []string{`[1,2]`, `nope`, `null`} {
		err := users.PutJSON(ctx, "b", []byte(bad))
		assert.True(t, qerrors.IsKind(err, qerrors.ErrDocument), bad)
	}
	assert.True(t, qerrors.IsKind(users.Put(ctx, "", map[string]any{}), qerrors.ErrDocument))
	assert.True(t, qerrors.IsKind(users.Put(ctx, "c", map[string]any{"ch": make(chan int)}), qerrors.ErrDocument))

	_, err = s.Collection("")
	assert.True(t, qerrors.IsKind(err, qerrors.ErrDocument))
}

func TestCollectionsAreIsolated_SQLite(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	users := seedUsers(t, s)

	orders, err := s.Collection("orders")
	require.NoError(t, err)
	require.NoError(t, orders.Put(ctx, "u1", map[string]any{"age": 99}))

	n, err := users.Count(ctx, mql.Document{"age": mql.Document{"$gt": int64(90)}})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = orders.Count(ctx, mql.Document{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	infos, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.CollectionInfo{{Name: "orders", Count: 1}, {Name: "users", Count: 4}}, infos)
}

func TestDeleteWhereAndBatch_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))
	ctx := context.Background()

	filter, err := qfilter.BuildQuery("is_verified=false", nil)
	require.NoError(t, err)
	n, err := users.DeleteWhere(ctx, filter)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	b := store.NewBatch()
	require.NoError(t, b.Put("u5", map[string]any{"age": 5}))
	require.NoError(t, b.PutJSON("u6", []byte(`{"age": 6}`)))
	require.NoError(t, b.Delete("u1"))
	require.NoError(t, b.Delete("missing"))
	assert.Error(t, b.Delete(""))
	assert.True(t, qerrors.IsKind(b.PutJSON("u7", []byte(`[]`)), qerrors.ErrDocument))

	applied, err := users.Apply(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)

	res, err := users.Find(ctx, mql.Document{}, store.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u4", "u5", "u6"}, ids(res.Items))

	// a failing op rolls the whole batch back
	bad := store.NewBatch()
	require.NoError(t, bad.Put("u8", map[string]any{"age": 8}))
	require.NoError(t, bad.Put("u9", map[string]any{"ch": make(chan int)}))
	_, err = users.Apply(ctx, bad)
	require.Error(t, err)
	_, err = users.Get(ctx, "u8")
	assert.True(t, qerrors.IsKind(err, qerrors.ErrNotFound))
}

func TestExplainAndErrors_SQLite(t *testing.T) {
	users := seedUsers(t, newSQLiteStore(t))
	ctx := context.Background()

	res, err := users.FindQuery(ctx, "age__gte=18&is_verified=true", nil, nil, store.FindOptions{Explain: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u4"}, ids(res.Items))
	assert.True(t, strings.HasPrefix(res.ExplainSQL, "WITH cte_0 AS ("))
	assert.Len(t, res.ExplainSteps, 3)

	_, err = users.FindQuery(ctx, "age__between=1", nil, nil, store.FindOptions{})
	assert.True(t, qerrors.IsKind(err, qerrors.ErrOperator))

	_, err = users.Find(ctx, mql.Document{"age": mql.Document{"$near": int64(1)}}, store.FindOptions{})
	assert.True(t, qerrors.IsKind(err, qerrors.ErrUnsupported))
}

func TestOpenExisting_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Create(ctx, sqlite.New(path), store.DefaultOptions())
	require.NoError(t, err)
	users, err := s.Collection("users")
	require.NoError(t, err)
	require.NoError(t, users.Put(ctx, "a", map[string]any{"x": 1}))
	require.NoError(t, s.Close())

	s, err = store.Open(ctx, sqlite.New(path), store.DefaultOptions())
	require.NoError(t, err)
	defer s.Close()
	users, err = s.Collection("users")
	require.NoError(t, err)
	view, err := users.Get(ctx, "a")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(view.DocJSON, &doc))
	assert.EqualValues(t, 1, doc["x"])

	_, err = store.Open(ctx, sqlite.New(filepath.Join(t.TempDir(), "empty.db")), store.DefaultOptions())
	assert.True(t, qerrors.IsKind(err, qerrors.ErrSQL))
}

func runDiscoverCases(t *testing.T, users *store.Collection) {
	ctx := context.Background()

	fields, err := users.DiscoverFields(ctx, mql.Document{})
	require.NoError(t, err)
	byName := make(map[string]store.FieldOverview)
	var names []string
	for _, f := range fields {
		byName[f.Field] = f
		names = append(names, f.Field)
	}
	assert.Equal(t, []string{
		"age", "created_at", "deleted", "email", "has_evolved",
		"is_verified", "name", "owner", "price", "tags",
	}, names)
	assert.Equal(t, map[string]int64{"number": 4}, byName["age"].Types)
	assert.Equal(t, map[string]int64{"boolean": 4}, byName["is_verified"].Types)
	assert.Equal(t, map[string]int64{"string": 4}, byName["created_at"].Types)
	assert.Equal(t, map[string]int64{"null": 1}, byName["deleted"].Types)
	assert.Equal(t, map[string]int64{"object": 2}, byName["owner"].Types)
	assert.EqualValues(t, 3, byName["tags"].DocCount)

	adults := mql.Document{"age": mql.Document{"$gte": int64(18)}}
	fields, err = users.DiscoverFields(ctx, adults)
	require.NoError(t, err)
	for _, f := range fields {
		if f.Field == "email" {
			assert.EqualValues(t, 2, f.DocCount)
		}
		assert.NotEqual(t, "deleted", f.Field)
	}

	values, err := users.DiscoverValues(ctx, "is_verified", nil, 0)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.JSONEq(t, "false", string(values[0].Value))
	assert.EqualValues(t, 2, values[0].Count)
	assert.JSONEq(t, "true", string(values[1].Value))

	values, err = users.DiscoverValues(ctx, "owner.city", nil, 1)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.JSONEq(t, `"Oslo"`, string(values[0].Value))

	values, err = users.DiscoverValues(ctx, "name", adults, 10)
	require.NoError(t, err)
	assert.Len(t, values, 3)

	_, err = users.DiscoverValues(ctx, "", nil, 0)
	assert.True(t, qfilter.IsKind(err, qfilter.ErrDocument))

	stats, err := users.Stats(ctx, "age", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Count)
	require.NotNil(t, stats.Min)
	assert.InDelta(t, 17, *stats.Min, 1e-9)
	assert.InDelta(t, 70, *stats.Max, 1e-9)
	assert.InDelta(t, 40.25, *stats.Avg, 1e-9)
	require.NotNil(t, stats.Median)
	assert.InDelta(t, 37, *stats.Median, 1e-9)

	stats, err = users.Stats(ctx, "price", adults)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Count)
	assert.InDelta(t, 6.65, *stats.Median, 1e-9)

	stats, err = users.Stats(ctx, "name", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Count)
	assert.Nil(t, stats.Min)
	assert.Nil(t, stats.Median)
}

func TestDiscover_SQLite(t *testing.T) {
	runDiscoverCases(t, seedUsers(t, newSQLiteStore(t)))
}
