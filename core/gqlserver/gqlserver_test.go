package gqlserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/usnistgov/symoffload/core/gqlserver"
	"github.com/usnistgov/symoffload/core/version"
)

func init() {
	gqlserver.AddMutation(&graphql.Field{
		Name: "echo",
		Type: gqlserver.NonNullString,
		Args: graphql.FieldConfigArgument{
			"s": &graphql.ArgumentConfig{Type: gqlserver.NonNullString},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Args["s"], nil
		},
	})
}

func TestDo(t *testing.T) {
	assert, require := makeAR(t)

	res := gqlserver.Do(context.Background(), `{ version { version commit dirty } }`, nil)
	require.Empty(res.Errors)
	v := res.Data.(map[string]any)["version"].(map[string]any)
	assert.Equal(version.V.Version, v["version"])
	assert.Equal(version.V.Commit, v["commit"])

	res = gqlserver.Do(context.Background(), `mutation echo($s: String!) { echo(s: $s) }`, map[string]any{"s": "hello"})
	require.Empty(res.Errors)
	assert.Equal("hello", res.Data.(map[string]any)["echo"])

	res = gqlserver.Do(context.Background(), `{ nonexistent }`, nil)
	assert.NotEmpty(res.Errors)
}

func TestHandler(t *testing.T) {
	assert, require := makeAR(t)
	h, e := gqlserver.Handler()
	require.NoError(e)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	assert.Contains(rec.Body.String(), "Disallow: /")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"{ version { commit } }"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	assert.Equal(http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Version struct {
				Commit string `json:"commit"`
			} `json:"version"`
		} `json:"data"`
	}
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(version.V.Commit, body.Data.Version.Commit)
}
