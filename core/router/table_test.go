package router

import (
	"testing"

	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) HandlerFunc {
	return func(*http.Context) http.Response {
		return http.OK().Text(s).Response()
	}
}

func serve(t *testing.T, e *Entry) string {
	t.Helper()
	resp := e.Handler.Serve(http.NewContext(nil, &http.Request{Path: "/"}))
	b := resp.Buffer
	for i := 0; i+3 < len(b); i++ {
		if string(b[i:i+4]) == "\r\n\r\n" {
			return string(b[i+4:])
		}
	}
	return ""
}

func TestTableParamMatch(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/users/:id", text("user"))

	e, ok := tbl.Find("/users/42", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "/users/:id", e.Pattern)
	assert.Equal(t, map[string]string{"id": "42"}, e.ExtractParams("/users/42"))

	_, ok = tbl.Find("/users/42", http.MethodPost)
	assert.False(t, ok)

	_, ok = tbl.Find("/users/42/extra", http.MethodGet)
	assert.False(t, ok)
}

func TestTableStaticRoutes(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/", text("root")).
		GET("/hello", text("hello")).
		GET("/hello/world", text("world"))

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/", "root", true},
		{"/hello", "hello", true},
		{"/hello/", "hello", true},
		{"/hello/world", "world", true},
		{"/Hello", "", false},
		{"/notfound", "", false},
	}

	for _, tt := range tests {
		e, ok := tbl.Find(tt.path, http.MethodGet)
		require.Equal(t, tt.ok, ok, tt.path)
		if ok {
			assert.Equal(t, tt.want, serve(t, e), tt.path)
		}
	}
}

func TestTableWildcard(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/files/*", text("files"))
	tbl.GET("/static/*filepath", text("static"))

	e, ok := tbl.Find("/files/a/b/c", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"*": "a/b/c"}, e.ExtractParams("/files/a/b/c"))

	e, ok = tbl.Find("/static/css/site.css", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "css/site.css", e.ExtractParams("/static/css/site.css")["filepath"])

	_, ok = tbl.Find("/files", http.MethodGet)
	assert.False(t, ok, "wildcard needs at least one segment")
}

func TestTableFirstRegisteredWins(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/user/admin", text("admin"))
	tbl.GET("/user/:id", text("param"))

	e, ok := tbl.Find("/user/admin", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "admin", serve(t, e))

	reversed := NewTable()
	reversed.GET("/user/:id", text("param"))
	reversed.GET("/user/admin", text("admin"))

	e, ok = reversed.Find("/user/admin", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "param", serve(t, e))
}

func TestTableDuplicateParamOverwrites(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/pair/:id/:id", text("pair"))

	e, ok := tbl.Find("/pair/1/2", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "2"}, e.ExtractParams("/pair/1/2"))
}

func TestTableNoParamsForLiteralRoute(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/api", text("api"))

	e, ok := tbl.Find("/api", http.MethodGet)
	require.True(t, ok)
	assert.Empty(t, e.ExtractParams("/api"))
}

func TestGroupPrefix(t *testing.T) {
	tbl := NewTable()
	g := tbl.Group("/api/user")
	g.GET(":id", text("get")).
		POST("/", text("create")).
		DELETE("/:id", text("delete"))
	tbl.AddGroup(g)

	routes := tbl.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, RouteInfo{Method: "GET", Pattern: "/api/user/:id"}, routes[0])
	assert.Equal(t, RouteInfo{Method: "POST", Pattern: "/api/user"}, routes[1])
	assert.Equal(t, RouteInfo{Method: "DELETE", Pattern: "/api/user/:id"}, routes[2])

	e, ok := tbl.Find("/api/user/9", http.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "9", e.ExtractParams("/api/user/9")["id"])
}

func TestNestedGroups(t *testing.T) {
	tbl := NewTable()
	api := tbl.Group("/api")
	data := api.Group("data")
	data.PUT(":id", text("put"))
	api.GET("/", text("root"))
	api.AddGroup(data)

	assert.Equal(t, "/api/data", data.Prefix())
	assert.Equal(t, 2, api.Len())

	tbl.AddGroup(api)

	_, ok := tbl.Find("/api/data/5", http.MethodPut)
	assert.True(t, ok)
	_, ok = tbl.Find("/api", http.MethodGet)
	assert.True(t, ok)
}

func TestGroupRoutesHeldUntilAdded(t *testing.T) {
	tbl := NewTable()
	g := tbl.Group("/pending")
	g.GET("/x", text("x"))

	_, ok := tbl.Find("/pending/x", http.MethodGet)
	assert.False(t, ok)

	tbl.AddGroup(g)
	_, ok = tbl.Find("/pending/x", http.MethodGet)
	assert.True(t, ok)
}

func TestJoinPattern(t *testing.T) {
	tests := []struct {
		prefix, pattern, want string
	}{
		{"/api/user", ":id", "/api/user/:id"},
		{"/api/user", "/", "/api/user"},
		{"/api/", "/data/", "/api/data"},
		{"", "", "/"},
		{"api", "*", "/api/*"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, joinPattern(tt.prefix, tt.pattern))
	}
}

func TestRegisterPanics(t *testing.T) {
	tbl := NewTable()

	assert.Panics(t, func() { tbl.GET("/a/*/b", text("x")) })
	assert.PanicsWithValue(t, "router: nil handler for /nil", func() { tbl.Register(http.MethodGet, "/nil", nil) })
	assert.PanicsWithValue(t, "router: nil handler for /nil", func() { tbl.Register(http.MethodGet, "/nil", HandlerFunc(nil)) })
	assert.Panics(t, func() { tbl.GET("/a/:", text("x")) })

	var missing HandlerFunc
	assert.Panics(t, func() { tbl.POST("/nil", missing) })
	assert.Panics(t, func() { tbl.Group("/api").GET("/nil", missing) })

	tbl.GET("/named", text("x"), "named")
	assert.Panics(t, func() { tbl.GET("/other", text("x"), "named") })

	tbl.Freeze()
	assert.True(t, tbl.Frozen())
	assert.PanicsWithValue(t, "router: register GET /late after freeze", func() {
		tbl.GET("/late", text("x"))
	})
}

func TestReverse(t *testing.T) {
	tbl := NewTable()
	tbl.GET("/", text("home"), "home")
	tbl.GET("/api/user/:id", text("user"), "user")
	tbl.GET("/files/*path", text("files"), "files")

	path, err := tbl.Reverse("home")
	require.NoError(t, err)
	assert.Equal(t, "/", path)

	path, err = tbl.Reverse("user", "42")
	require.NoError(t, err)
	assert.Equal(t, "/api/user/42", path)

	path, err = tbl.Reverse("files", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/files/a/b.txt", path)

	_, err = tbl.Reverse("user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough values")

	_, err = tbl.Reverse("user", "1", "2")
	assert.Error(t, err)

	_, err = tbl.Reverse("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no route named "bogus"`)
}

func BenchmarkFindParam(b *testing.B) {
	tbl := NewTable()
	tbl.GET("/", text("root"))
	tbl.GET("/api", text("api"))
	tbl.GET("/api/user/:id", text("user"))
	tbl.GET("/api/data/:id", text("data"))
	tbl.Freeze()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tbl.Find("/api/data/123", http.MethodGet)
	}
}
