package load_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kinship"
	"github.com/syssam/kinship/dialect"
	"github.com/syssam/kinship/load"
	"github.com/syssam/kinship/schema"
	"github.com/syssam/kinship/schema/field"
	"github.com/syssam/kinship/schema/rel"
)

// memQuerier is an in-memory query executor over literal row tables. It
// records every query it receives and can inject failures per table.
type memQuerier struct {
	mu     sync.Mutex
	tables map[string][]dialect.Row
	log    []dialect.Query
	fail   map[string]error
}

func newMemQuerier(tables map[string][]dialect.Row) *memQuerier {
	return &memQuerier{tables: tables, fail: make(map[string]error)}
}

func (m *memQuerier) Query(ctx context.Context, q dialect.Query) ([]dialect.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, q)
	if err := m.fail[q.Table]; err != nil {
		return nil, err
	}
	if q.Join != nil {
		return m.joined(q), nil
	}
	var out []dialect.Row
	for _, row := range m.tables[q.Table] {
		if matchRow(row, q.Preds) {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

// joined evaluates a joined query: predicates apply to the joined table,
// and its selected columns ride along on the primary rows.
func (m *memQuerier) joined(q dialect.Query) []dialect.Row {
	j := q.Join
	var out []dialect.Row
	for _, jrow := range m.tables[j.Table] {
		if !matchRow(jrow, q.Preds) {
			continue
		}
		for _, row := range m.tables[q.Table] {
			if norm(row[j.Left]) != norm(jrow[j.Right]) {
				continue
			}
			r := copyRow(row)
			for _, col := range j.Select {
				r[col] = jrow[col]
			}
			out = append(out, r)
		}
	}
	return out
}

func (m *memQuerier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}

func (m *memQuerier) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}

func (m *memQuerier) failOn(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[table] = err
}

// setTable replaces a table's rows, simulating external writes between loads.
func (m *memQuerier) setTable(name string, rows []dialect.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = rows
}

func matchRow(row dialect.Row, preds []dialect.Cond) bool {
	for _, c := range preds {
		v, ok := row[c.Column]
		if !ok || v == nil {
			return false
		}
		hit := false
		for _, want := range c.Values {
			if norm(v) == norm(want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func norm(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case []byte:
		return string(x)
	default:
		return v
	}
}

func copyRow(row dialect.Row) dialect.Row {
	out := make(dialect.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func row(kv ...any) dialect.Row {
	r := make(dialect.Row, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

// blogRegistry builds the fixture schema: users in countries writing posts,
// posts and videos sharing polymorphic comments and tags, users carrying
// roles through a pivot table.
func blogRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	for _, e := range []*schema.Entity{
		{Name: "User", Table: "users", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "name": field.TypeString, "country_id": field.TypeInt64,
		}},
		{Name: "Profile", Table: "profiles", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "user_id": field.TypeInt64, "bio": field.TypeString,
		}},
		{Name: "Post", Table: "posts", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "user_id": field.TypeInt64, "title": field.TypeString,
		}},
		{Name: "Video", Table: "videos", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "title": field.TypeString,
		}},
		{Name: "Comment", Table: "comments", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "body": field.TypeString,
			"commentable_id": field.TypeInt64, "commentable_type": field.TypeString,
		}},
		{Name: "Country", Table: "countries", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "name": field.TypeString,
		}},
		{Name: "Role", Table: "roles", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "name": field.TypeString,
		}},
		{Name: "Tag", Table: "tags", ID: "id", Columns: map[string]field.Type{
			"id": field.TypeInt64, "name": field.TypeString,
		}},
	} {
		require.NoError(t, reg.Register(e))
	}
	require.NoError(t, reg.RegisterMorphType("post", "Post"))
	require.NoError(t, reg.RegisterMorphType("video", "Video"))
	require.NoError(t, reg.Define("User", "profile", rel.HasOne("Profile")))
	require.NoError(t, reg.Define("User", "posts", rel.HasMany("Post")))
	require.NoError(t, reg.Define("User", "roles", rel.ManyToMany("Role")))
	require.NoError(t, reg.Define("Post", "author", rel.BelongsTo("User")))
	require.NoError(t, reg.Define("Post", "comments", rel.MorphMany("Comment", "commentable")))
	require.NoError(t, reg.Define("Post", "tags", rel.MorphToMany("Tag", "taggable")))
	require.NoError(t, reg.Define("Video", "comments", rel.MorphMany("Comment", "commentable")))
	require.NoError(t, reg.Define("Comment", "commentable", rel.MorphOf("commentable")))
	require.NoError(t, reg.Define("Country", "posts", rel.HasManyThrough("Post", "User")))
	require.NoError(t, reg.Define("Country", "firstPost", rel.HasOneThrough("Post", "User")))
	return reg
}

func blogData() map[string][]dialect.Row {
	return map[string][]dialect.Row{
		"countries": {
			row("id", int64(1), "name", "Argentina"),
			row("id", int64(2), "name", "Iceland"),
		},
		"users": {
			row("id", int64(1), "name", "ariel", "country_id", int64(1)),
			row("id", int64(2), "name", "nati", "country_id", int64(1)),
			row("id", int64(3), "name", "zed", "country_id", int64(1)),
			row("id", int64(4), "name", "noa", "country_id", int64(2)),
			row("id", int64(5), "name", "bot", "country_id", nil),
		},
		"profiles": {
			row("id", int64(100), "user_id", int64(1), "bio", "hi"),
		},
		"posts": {
			row("id", int64(10), "user_id", int64(1), "title", "a"),
			row("id", int64(11), "user_id", int64(1), "title", "b"),
			row("id", int64(12), "user_id", int64(2), "title", "c"),
			row("id", int64(13), "user_id", int64(2), "title", "d"),
			row("id", int64(14), "user_id", int64(3), "title", "e"),
			row("id", int64(15), "user_id", int64(3), "title", "f"),
			row("id", int64(16), "user_id", int64(4), "title", "g"),
		},
		"videos": {
			row("id", int64(10), "title", "clip"),
		},
		"comments": {
			row("id", int64(1), "body", "first", "commentable_id", int64(10), "commentable_type", "post"),
			row("id", int64(2), "body", "second", "commentable_id", int64(10), "commentable_type", "post"),
			row("id", int64(3), "body", "on video", "commentable_id", int64(10), "commentable_type", "video"),
			row("id", int64(4), "body", "third", "commentable_id", int64(12), "commentable_type", "post"),
		},
		"roles": {
			row("id", int64(100), "name", "admin"),
			row("id", int64(101), "name", "editor"),
		},
		"role_user": {
			row("user_id", int64(1), "role_id", int64(100)),
			row("user_id", int64(1), "role_id", int64(101)),
			row("user_id", int64(2), "role_id", int64(100)),
		},
		"tags": {
			row("id", int64(200), "name", "go"),
			row("id", int64(201), "name", "db"),
		},
		"taggables": {
			row("taggable_id", int64(10), "taggable_type", "post", "tag_id", int64(200)),
			row("taggable_id", int64(10), "taggable_type", "post", "tag_id", int64(201)),
			row("taggable_id", int64(12), "taggable_type", "post", "tag_id", int64(200)),
			row("taggable_id", int64(10), "taggable_type", "video", "tag_id", int64(201)),
		},
	}
}

func newFixture(t *testing.T, opts ...load.Option) (*load.Loader, *memQuerier) {
	t.Helper()
	q := newMemQuerier(blogData())
	return load.New(blogRegistry(t), q, opts...), q
}

func instance(entity string, kv ...any) *kinship.Instance {
	return kinship.NewInstance(entity, row(kv...))
}

func relatedOne(t *testing.T, in *kinship.Instance, name string) *kinship.Instance {
	t.Helper()
	v, ok := in.Related(name)
	require.True(t, ok, "relationship %q not loaded", name)
	if v == nil {
		return nil
	}
	return v.(*kinship.Instance)
}

func relatedMany(t *testing.T, in *kinship.Instance, name string) []*kinship.Instance {
	t.Helper()
	v, ok := in.Related(name)
	require.True(t, ok, "relationship %q not loaded", name)
	return v.([]*kinship.Instance)
}

func ids(ins []*kinship.Instance) []int64 {
	out := make([]int64, len(ins))
	for i, in := range ins {
		v, _ := in.Get("id")
		out[i] = v.(int64)
	}
	return out
}

func TestWithRelatedHasOne(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{
		instance("User", "id", int64(1)),
		instance("User", "id", int64(2)),
	}
	_, err := l.WithRelated(context.Background(), owners, "profile")
	require.NoError(t, err)
	assert.Equal(t, 1, q.count())

	profile := relatedOne(t, owners[0], "profile")
	require.NotNil(t, profile)
	bio, _ := profile.Get("bio")
	assert.Equal(t, "hi", bio)

	// The second user has no profile row: loaded, value absent.
	assert.Nil(t, relatedOne(t, owners[1], "profile"))
}

func TestWithRelatedHasMany(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{
		instance("User", "id", int64(1)),
		instance("User", "id", int64(2)),
		instance("User", "id", int64(3)),
	}
	_, err := l.WithRelated(context.Background(), owners, "posts")
	require.NoError(t, err)
	assert.Equal(t, 1, q.count())
	assert.Equal(t, []int64{10, 11}, ids(relatedMany(t, owners[0], "posts")))
	assert.Equal(t, []int64{12, 13}, ids(relatedMany(t, owners[1], "posts")))
	assert.Equal(t, []int64{14, 15}, ids(relatedMany(t, owners[2], "posts")))
}

func TestWithRelatedBelongsTo(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{
		instance("Post", "id", int64(10), "user_id", int64(1)),
		instance("Post", "id", int64(11), "user_id", int64(1)),
		instance("Post", "id", int64(12), "user_id", int64(2)),
	}
	_, err := l.WithRelated(context.Background(), owners, "author")
	require.NoError(t, err)
	// Owners sharing a parent share one key; still a single query.
	assert.Equal(t, 1, q.count())
	for i, want := range []string{"ariel", "ariel", "nati"} {
		author := relatedOne(t, owners[i], "author")
		require.NotNil(t, author)
		name, _ := author.Get("name")
		assert.Equal(t, want, name)
	}
}

func TestWithRelatedManyToMany(t *testing.T) {
	t.Parallel()

	owners := func() []*kinship.Instance {
		return []*kinship.Instance{
			instance("User", "id", int64(1)),
			instance("User", "id", int64(2)),
			instance("User", "id", int64(3)),
		}
	}
	check := func(t *testing.T, batch []*kinship.Instance) {
		assert.Equal(t, []int64{100, 101}, ids(relatedMany(t, batch[0], "roles")))
		assert.Equal(t, []int64{100}, ids(relatedMany(t, batch[1], "roles")))
		assert.Empty(t, relatedMany(t, batch[2], "roles"))
	}

	t.Run("two_round_trips", func(t *testing.T) {
		t.Parallel()
		l, q := newFixture(t)
		batch := owners()
		_, err := l.WithRelated(context.Background(), batch, "roles")
		require.NoError(t, err)
		assert.Equal(t, 2, q.count())
		check(t, batch)
	})

	t.Run("pivot_join", func(t *testing.T) {
		t.Parallel()
		l, q := newFixture(t, load.WithPivotJoin())
		batch := owners()
		_, err := l.WithRelated(context.Background(), batch, "roles")
		require.NoError(t, err)
		assert.Equal(t, 1, q.count())
		check(t, batch)
		// The join key rides along only for grouping, never on the result.
		_, ok := relatedMany(t, batch[0], "roles")[0].Get("user_id")
		assert.False(t, ok)
	})
}

// Every load reads the store as it is now: a pivot row removed between two
// loads is gone from the second result.
func TestWithRelatedReflectsPivotRemoval(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	before := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err := l.WithRelated(context.Background(), before, "roles")
	require.NoError(t, err)
	require.Equal(t, []int64{100, 101}, ids(relatedMany(t, before[0], "roles")))

	q.setTable("role_user", []dialect.Row{
		row("user_id", int64(1), "role_id", int64(100)),
		row("user_id", int64(2), "role_id", int64(100)),
	})
	after := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err = l.WithRelated(context.Background(), after, "roles")
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ids(relatedMany(t, after[0], "roles")))
}

func TestWithRelatedThrough(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{
		instance("Country", "id", int64(1)),
		instance("Country", "id", int64(2)),
	}
	_, err := l.WithRelated(context.Background(), owners, "posts")
	require.NoError(t, err)
	assert.Equal(t, 2, q.count())
	// Three resident users with two posts each.
	assert.Len(t, relatedMany(t, owners[0], "posts"), 6)
	assert.Equal(t, []int64{16}, ids(relatedMany(t, owners[1], "posts")))
}

func TestWithRelatedHasOneThrough(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{instance("Country", "id", int64(1))}
	_, err := l.WithRelated(context.Background(), owners, "firstPost")
	require.NoError(t, err)
	assert.Equal(t, 2, q.count())
	post := relatedOne(t, owners[0], "firstPost")
	require.NotNil(t, post)
	assert.Equal(t, "Post", post.Entity())
}

func TestWithRelatedMorphMany(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	posts := []*kinship.Instance{
		instance("Post", "id", int64(10)),
		instance("Post", "id", int64(11)),
		instance("Post", "id", int64(12)),
	}
	_, err := l.WithRelated(context.Background(), posts, "comments")
	require.NoError(t, err)
	assert.Equal(t, 1, q.count())
	// A video with the same id as post 10 shares the comments table; the
	// discriminator keeps its comment out of the post's collection.
	assert.Equal(t, []int64{1, 2}, ids(relatedMany(t, posts[0], "comments")))
	assert.Empty(t, relatedMany(t, posts[1], "comments"))
	assert.Equal(t, []int64{4}, ids(relatedMany(t, posts[2], "comments")))

	videos := []*kinship.Instance{instance("Video", "id", int64(10))}
	_, err = l.WithRelated(context.Background(), videos, "comments")
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(relatedMany(t, videos[0], "comments")))
}

func TestWithRelatedMorphToMany(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	posts := []*kinship.Instance{
		instance("Post", "id", int64(10)),
		instance("Post", "id", int64(11)),
		instance("Post", "id", int64(12)),
	}
	_, err := l.WithRelated(context.Background(), posts, "tags")
	require.NoError(t, err)
	assert.Equal(t, 2, q.count())
	assert.Equal(t, []int64{200, 201}, ids(relatedMany(t, posts[0], "tags")))
	assert.Empty(t, relatedMany(t, posts[1], "tags"))
	assert.Equal(t, []int64{200}, ids(relatedMany(t, posts[2], "tags")))
}

func TestWithRelatedMorphTo(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	comments := []*kinship.Instance{
		instance("Comment", "id", int64(1), "commentable_id", int64(10), "commentable_type", "post"),
		instance("Comment", "id", int64(3), "commentable_id", int64(10), "commentable_type", "video"),
		instance("Comment", "id", int64(4), "commentable_id", int64(12), "commentable_type", "post"),
		instance("Comment", "id", int64(9), "commentable_id", nil, "commentable_type", nil),
	}
	_, err := l.WithRelated(context.Background(), comments, "commentable")
	require.NoError(t, err)
	// One query per distinct discriminator value in the batch.
	assert.Equal(t, 2, q.count())

	post := relatedOne(t, comments[0], "commentable")
	require.NotNil(t, post)
	assert.Equal(t, "Post", post.Entity())
	title, _ := post.Get("title")
	assert.Equal(t, "a", title)

	video := relatedOne(t, comments[1], "commentable")
	require.NotNil(t, video)
	assert.Equal(t, "Video", video.Entity())

	other := relatedOne(t, comments[2], "commentable")
	require.NotNil(t, other)
	assert.Equal(t, "Post", other.Entity())

	// Detached comment: loaded, parent absent.
	assert.Nil(t, relatedOne(t, comments[3], "commentable"))
}

func TestWithRelatedMorphToUnknownTag(t *testing.T) {
	t.Parallel()

	l, _ := newFixture(t)
	comments := []*kinship.Instance{
		instance("Comment", "id", int64(1), "commentable_id", int64(10), "commentable_type", "page"),
	}
	_, err := l.WithRelated(context.Background(), comments, "commentable")
	assert.True(t, kinship.IsUnregisteredMorphType(err))
}

func TestWithRelatedEmptyBatch(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	g, err := l.WithRelated(context.Background(), nil, "profile")
	require.NoError(t, err)
	assert.Empty(t, g.Owners)
	assert.Zero(t, q.count())

	owners := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err = l.WithRelated(context.Background(), owners)
	require.NoError(t, err)
	assert.Zero(t, q.count())
}

func TestWithRelatedNullForeignKey(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{
		instance("Post", "id", int64(90), "user_id", nil),
		instance("Post", "id", int64(91)),
	}
	// Every key in the batch is null or missing: no query at all.
	_, err := l.WithRelated(context.Background(), owners, "author")
	require.NoError(t, err)
	assert.Zero(t, q.count())
	assert.Nil(t, relatedOne(t, owners[0], "author"))
	assert.Nil(t, relatedOne(t, owners[1], "author"))
}

func TestWithRelatedAllOrNothing(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	boom := errors.New("connection reset")
	q.failOn("posts", boom)

	owners := []*kinship.Instance{
		instance("User", "id", int64(1)),
		instance("User", "id", int64(2)),
	}
	_, err := l.WithRelated(context.Background(), owners, "profile", "posts")
	require.Error(t, err)
	assert.True(t, kinship.IsQueryFailed(err))
	assert.ErrorIs(t, err, boom)

	// The profile query may have succeeded; no owner is mutated either way.
	for _, o := range owners {
		assert.False(t, o.RelatedLoaded("profile"))
		assert.False(t, o.RelatedLoaded("posts"))
	}
}

func TestWithRelatedMixedBatch(t *testing.T) {
	t.Parallel()

	l, _ := newFixture(t)
	owners := []*kinship.Instance{
		instance("User", "id", int64(1)),
		instance("Post", "id", int64(10)),
	}
	_, err := l.WithRelated(context.Background(), owners, "profile")
	assert.True(t, kinship.IsInvalidSchema(err))
}

func TestWithRelatedUnknownRelationship(t *testing.T) {
	t.Parallel()

	l, _ := newFixture(t)
	owners := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err := l.WithRelated(context.Background(), owners, "followers")
	assert.True(t, kinship.IsUnknownRelationship(err))
}

func TestWithRelatedCancelled(t *testing.T) {
	t.Parallel()

	l, _ := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	owners := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err := l.WithRelated(ctx, owners, "profile")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, owners[0].RelatedLoaded("profile"))
}

func TestWithRelatedMultipleNames(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	owners := []*kinship.Instance{
		instance("User", "id", int64(1)),
		instance("User", "id", int64(2)),
	}
	_, err := l.WithRelated(context.Background(), owners, "profile", "posts", "roles")
	require.NoError(t, err)
	// 1 for profiles, 1 for posts, 2 for the role pivot traversal.
	assert.Equal(t, 4, q.count())
	assert.NotNil(t, relatedOne(t, owners[0], "profile"))
	assert.Len(t, relatedMany(t, owners[0], "posts"), 2)
	assert.Len(t, relatedMany(t, owners[0], "roles"), 2)
}

func TestQueryAndLazyLoad(t *testing.T) {
	t.Parallel()

	l, q := newFixture(t)
	ctx := context.Background()
	users, err := l.Query(ctx, "User", dialect.EQ("id", int64(1)))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 1, q.count())

	profile, err := users[0].One(ctx, "profile")
	require.NoError(t, err)
	require.NotNil(t, profile)
	bio, _ := profile.Get("bio")
	assert.Equal(t, "hi", bio)
	assert.Equal(t, 2, q.count())

	// Memoized: the second access issues no query.
	_, err = users[0].One(ctx, "profile")
	require.NoError(t, err)
	assert.Equal(t, 2, q.count())

	posts, err := users[0].Many(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids(posts))

	// Lazy results are loader-bound too: their own accessors resolve.
	author, err := posts[0].One(ctx, "author")
	require.NoError(t, err)
	require.NotNil(t, author)
	name, _ := author.Get("name")
	assert.Equal(t, "ariel", name)
}

func TestQueryUnknownEntity(t *testing.T) {
	t.Parallel()

	l, _ := newFixture(t)
	_, err := l.Query(context.Background(), "Page")
	assert.True(t, kinship.IsUnknownEntity(err))
}

// The first load freezes the registry: late schema mutation is rejected
// instead of racing concurrent plans.
func TestLoadFreezesRegistry(t *testing.T) {
	t.Parallel()

	reg := blogRegistry(t)
	l := load.New(reg, newMemQuerier(blogData()))
	owners := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err := l.WithRelated(context.Background(), owners, "profile")
	require.NoError(t, err)

	err = reg.Register(&schema.Entity{Name: "Page", Table: "pages", ID: "id",
		Columns: map[string]field.Type{"id": field.TypeInt64}})
	assert.ErrorIs(t, err, kinship.ErrRegistryFrozen)
}

func TestNewVersionedSwap(t *testing.T) {
	t.Parallel()

	v := schema.NewVersioned(blogRegistry(t))
	l := load.NewVersioned(v, newMemQuerier(blogData()))
	ctx := context.Background()

	owners := []*kinship.Instance{instance("User", "id", int64(1))}
	_, err := l.WithRelated(ctx, owners, "profile")
	require.NoError(t, err)

	// Swap in a schema without the relationship: later loads see the new
	// snapshot, the completed graph keeps its attachments.
	next := schema.NewRegistry()
	require.NoError(t, next.Register(&schema.Entity{Name: "User", Table: "users", ID: "id",
		Columns: map[string]field.Type{"id": field.TypeInt64}}))
	v.Swap(next)

	_, err = l.WithRelated(ctx, []*kinship.Instance{instance("User", "id", int64(1))}, "profile")
	assert.True(t, kinship.IsUnknownRelationship(err))
	assert.True(t, owners[0].RelatedLoaded("profile"))
}
