// Package gqlserver provides the management GraphQL schema and its HTTP server.
// The schema is a singleton; packages add fields in init() functions.
package gqlserver

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/bhoriuchi/graphql-go-tools/handler"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/core/version"
	"go.uber.org/zap"
)

var logger = logging.New("gqlserver")

// Schema is the singleton of graphql.SchemaConfig.
// Fields must be added before the first call to Compile.
var Schema = graphql.SchemaConfig{
	Query: graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: graphql.Fields{},
	}),
	Mutation: graphql.NewObject(graphql.ObjectConfig{
		Name:   "Mutation",
		Fields: graphql.Fields{},
	}),
}

// AddQuery adds a top-level query field.
func AddQuery(f *graphql.Field) {
	Schema.Query.AddFieldConfig(f.Name, f)
}

// AddMutation adds a top-level mutation field.
func AddMutation(f *graphql.Field) {
	Schema.Mutation.AddFieldConfig(f.Name, f)
}

// GqlVersionType is the GraphQL type of version.Version.
var GqlVersionType *graphql.Object

func init() {
	GqlVersionType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Version",
		Fields: BindFields[version.Version](FieldTypes{
			reflect.TypeOf(time.Time{}): graphql.DateTime,
		}),
	})

	AddQuery(&graphql.Field{
		Name:        "version",
		Description: "Version information.",
		Type:        graphql.NewNonNull(GqlVersionType),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return version.V, nil
		},
	})
}

var compiled struct {
	once sync.Once
	sch  graphql.Schema
	e    error
}

// Compile builds the schema.
func Compile() (*graphql.Schema, error) {
	compiled.once.Do(func() {
		compiled.sch, compiled.e = graphql.NewSchema(Schema)
		if compiled.e != nil {
			logger.Error("graphql.NewSchema error", zap.Error(compiled.e))
		}
	})
	return &compiled.sch, compiled.e
}

// Do executes a GraphQL request in-process.
func Do(ctx context.Context, query string, vars map[string]any) *graphql.Result {
	sch, e := Compile()
	if e != nil {
		return &graphql.Result{Errors: []gqlerrors.FormattedError{gqlerrors.FormatError(e)}}
	}
	return graphql.Do(graphql.Params{
		Schema:         *sch,
		RequestString:  query,
		VariableValues: vars,
		Context:        ctx,
	})
}

// Handler returns an HTTP handler serving the schema with a playground.
func Handler() (http.Handler, error) {
	sch, e := Compile()
	if e != nil {
		return nil, e
	}

	var mux http.ServeMux
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Add("Content-Type", "text/plain")
		w.Write([]byte("User-Agent: *\nDisallow: /\n"))
	})
	mux.Handle("/", handler.New(&handler.Config{
		Schema:           sch,
		Pretty:           true,
		PlaygroundConfig: handler.NewDefaultPlaygroundConfig(),
	}))
	return &mux, nil
}

// ListenAndServe serves GraphQL over HTTP until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string) error {
	h, e := Handler()
	if e != nil {
		return e
	}

	srv := &http.Server{Addr: addr, Handler: h}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("GraphQL HTTP server starting", zap.String("addr", addr))
	if e := srv.ListenAndServe(); !errors.Is(e, http.ErrServerClosed) {
		return e
	}
	return nil
}
