package filter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/api"
)

func people(t *testing.T) *api.Database {
	rows := []map[string]interface{}{
		{"_id": "1", "name": "Nolan Byrd", "eyeColor": "green", "age": 32.0, "tags": []interface{}{"labore", "esse"}, "email": "nolan@cundd.net"},
		{"_id": "2", "name": "Ada Frost", "eyeColor": "brown", "age": 27.0, "tags": []interface{}{"minim"}},
		{"_id": "3", "name": "Booker Oneil", "eyeColor": "green", "age": 41.0, "tags": []interface{}{"laboris"}, "address": map[string]interface{}{"city": "Oslo"}},
		{"_id": "4", "name": "Lara Vance", "eyeColor": "blue", "age": 19.0},
		{"_id": "5", "name": "Ivo Hart", "eyeColor": "green", "age": 55.0, "email": "ivo@example.com", "address": map[string]interface{}{"city": "Lyon"}},
	}
	docs := make([]*api.Document, 0, len(rows))
	for _, row := range rows {
		d, err := api.NewDocument(row)
		require.NoError(t, err)
		docs = append(docs, d)
	}
	db, err := api.NewDatabase("people", docs...)
	require.NoError(t, err)
	return db
}

func greenEyes() *Filter {
	return New(NewPropertyComparison("eyeColor", EqualTo, "green"))
}

func ids(docs []*api.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

func TestResult_Current(t *testing.T) {
	result := greenEyes().FilterCollection(people(t))

	current, err := result.Current()
	require.NoError(t, err)
	again, err := result.Current()
	require.NoError(t, err)
	assert.Same(t, current, again)
	assert.Equal(t, "Nolan Byrd", current.ValueForKey("name"))

	next, err := result.Next()
	require.NoError(t, err)
	assert.Equal(t, "Booker Oneil", next.ValueForKey("name"))
}

func TestResult_IndependentCursor(t *testing.T) {
	db := people(t)
	result := greenEyes().FilterCollection(db)

	_, err := result.Next()
	require.NoError(t, err)
	_, err = result.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, db.Key())

	first, err := db.Current()
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID())

	_, err = db.Next()
	require.NoError(t, err)
	current, err := result.Current()
	require.NoError(t, err)
	assert.Equal(t, "5", current.ID())
}

func TestResult_CountIsStable(t *testing.T) {
	result := greenEyes().FilterCollection(people(t))

	for i := 0; i < 2; i++ {
		_, err := result.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, 3, result.Count())

	for result.Valid() {
		_, _ = result.Next()
	}
	assert.Equal(t, 3, result.Count())

	result.Rewind()
	assert.Equal(t, 3, result.Count())
	assert.Equal(t, []string{"1", "3", "5"}, ids(result.Documents()))
}

func TestResult_Bounds(t *testing.T) {
	result := greenEyes().FilterCollection(people(t))

	_, err := result.Next()
	require.NoError(t, err)
	_, err = result.Next()
	require.NoError(t, err)

	_, err = result.Next()
	assert.ErrorIs(t, err, api.ErrIndexOutOfRange)
	_, err = result.Current()
	assert.ErrorIs(t, err, api.ErrIndexOutOfRange)
	_, err = result.Next()
	assert.ErrorIs(t, err, api.ErrIndexOutOfRange)
	assert.Equal(t, 3, result.Key())
}

func TestResult_RewindThenBoundedIteration(t *testing.T) {
	result := greenEyes().FilterCollection(people(t))

	result.Rewind()
	_, err := result.Next()
	require.NoError(t, err)
	result.Rewind()

	for i := 1; i < result.Count(); i++ {
		_, err := result.Next()
		require.NoError(t, err)
	}
	last, err := result.Current()
	require.NoError(t, err)
	assert.Equal(t, "5", last.ID())
}

func TestResult_Empty(t *testing.T) {
	result := New(NewPropertyComparison("eyeColor", EqualTo, "violet")).FilterCollection(people(t))

	assert.Zero(t, result.Count())
	assert.False(t, result.Valid())
	_, err := result.Current()
	assert.ErrorIs(t, err, api.ErrIndexOutOfRange)

	b, err := result.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

// Documents reached through two results of the same database are the same
// instances.
func TestResult_ObjectLifeCycle(t *testing.T) {
	db := people(t)
	fromFirst, err := greenEyes().FilterCollection(db).Current()
	require.NoError(t, err)
	fromSecond, err := greenEyes().FilterCollection(db).Current()
	require.NoError(t, err)
	require.Same(t, fromFirst, fromSecond)

	require.NoError(t, fromFirst.SetValueForKey("favorite_movie", "Star Wars"))
	assert.Equal(t, "Star Wars", fromSecond.ValueForKey("favorite_movie"))
	assert.Equal(t, "Star Wars", db.FindByIdentifier(fromFirst.ID()).ValueForKey("favorite_movie"))
}

func TestResult_IsLazy(t *testing.T) {
	db := people(t)
	result := greenEyes().FilterCollection(db)

	d, err := api.NewDocument(map[string]interface{}{"_id": "6", "eyeColor": "green"})
	require.NoError(t, err)
	require.NoError(t, db.Add(d))

	assert.Equal(t, 4, result.Count())
}

func TestPropertyComparison(t *testing.T) {
	tests := []struct {
		name       string
		comparison PropertyComparison
		want       []string
	}{
		{"eq", NewPropertyComparison("eyeColor", EqualTo, "blue"), []string{"4"}},
		{"eq number", NewPropertyComparison("age", EqualTo, 27), []string{"2"}},
		{"ne", NewPropertyComparison("eyeColor", NotEqualTo, "green"), []string{"2", "4"}},
		{"contains sequence", NewPropertyComparison("tags", Contains, "labore"), []string{"1"}},
		{"contains substring", NewPropertyComparison("email", Contains, "@cundd.net"), []string{"1"}},
		{"contains key", NewPropertyComparison("address", Contains, "city"), []string{"3", "5"}},
		{"gt", NewPropertyComparison("age", GreaterThan, 32.0), []string{"3", "5"}},
		{"gte", NewPropertyComparison("age", GreaterThanOrEqual, 32.0), []string{"1", "3", "5"}},
		{"lt", NewPropertyComparison("age", LessThan, 27.0), []string{"4"}},
		{"lte", NewPropertyComparison("age", LessThanOrEqual, 27.0), []string{"2", "4"}},
		{"string order", NewPropertyComparison("name", LessThan, "B"), []string{"2"}},
		{"key path", NewPropertyComparison("address.city", EqualTo, "Oslo"), []string{"3"}},
		{"sequence index", NewPropertyComparison("tags.0", EqualTo, "minim"), []string{"2"}},
		{"identifier", NewPropertyComparison("_id", EqualTo, "4"), []string{"4"}},
		{"unresolvable", NewPropertyComparison("address.zip", NotEqualTo, "x"), []string{}},
		{"type mismatch", NewPropertyComparison("name", GreaterThan, 3.0), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(tt.comparison).FilterCollection(people(t))
			assert.Equal(t, tt.want, ids(result.Documents()))
		})
	}
}

func TestFilter_AndChain(t *testing.T) {
	f := greenEyes()
	f.AddComparison(NewPropertyComparison("age", GreaterThan, 40.0))
	f.AddComparison(NewPropertyComparison("age", GreaterThan, 40.0))
	assert.Len(t, f.Comparisons(), 3)

	assert.Equal(t, []string{"3", "5"}, ids(f.FilterCollection(people(t)).Documents()))
	assert.Len(t, New().FilterCollection(people(t)).Documents(), 5)
}

func TestExpressionComparison(t *testing.T) {
	db := people(t)

	result := New(NewExpressionComparison(`eyeColor == "blue"`)).FilterCollection(db)
	assert.Equal(t, []string{"4"}, ids(result.Documents()))

	result = New(NewExpressionComparison(`eyeColor ==`)).FilterCollection(db)
	assert.Zero(t, result.Count())

	result = New(NewExpressionComparison(`name`)).FilterCollection(db)
	assert.Zero(t, result.Count())
}

func TestBuild(t *testing.T) {
	q, err := url.ParseQuery("eyeColor=green&age[gte]=40&print=pretty")
	require.NoError(t, err)

	f, err := Build(q)
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Len(t, f.Comparisons(), 2)
	assert.Equal(t, NewPropertyComparison("age", GreaterThanOrEqual, 40.0), f.Comparisons()[0])
	assert.Equal(t, NewPropertyComparison("eyeColor", EqualTo, "green"), f.Comparisons()[1])
	assert.Equal(t, []string{"3", "5"}, ids(f.FilterCollection(people(t)).Documents()))
}

func TestBuild_Values(t *testing.T) {
	assert.Equal(t, 12.5, parseValue("12.5"))
	assert.Equal(t, true, parseValue("true"))
	assert.Nil(t, parseValue("null"))
	assert.Equal(t, "green", parseValue("green"))
	assert.Equal(t, "quoted", parseValue(`"quoted"`))
	assert.Equal(t, `{"a":1}`, parseValue(`{"a":1}`))
}

func TestBuild_Where(t *testing.T) {
	f, err := Build(url.Values{WhereKey: {`name == "Lara Vance"`}})
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(f.FilterCollection(people(t)).Documents()))
}

func TestBuild_NoComparison(t *testing.T) {
	f, err := Build(url.Values{"print": {"pretty"}, "auth": {"token"}})
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = Build(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBuild_Errors(t *testing.T) {
	for _, raw := range []string{
		"age[between]=1",
		"[eq]=1",
		"age[eq=1",
		"_where=",
	} {
		q, err := url.ParseQuery(raw)
		require.NoError(t, err)
		_, err = Build(q)
		assert.Error(t, err, raw)
	}

	_, err := ParseOperator("between")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}
