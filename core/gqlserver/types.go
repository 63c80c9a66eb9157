package gqlserver

import (
	go2gql_scalars "github.com/EGT-Ukraine/go2gql/api/scalars"
	tools_scalars "github.com/bhoriuchi/graphql-go-tools/scalars"
	"github.com/graphql-go/graphql"
)

// JSON is a scalar holding arbitrary JSON, used for configuration objects.
var JSON = tools_scalars.ScalarJSON

// Uint64 and Int64 are 64-bit scalars. Counters exceed the 32-bit range of graphql.Int.
var (
	Uint64 = go2gql_scalars.GraphQLUInt64Scalar
	Int64  = go2gql_scalars.GraphQLInt64Scalar
)

// Non-null variants.
var (
	NonNullJSON    = graphql.NewNonNull(JSON)
	NonNullUint64  = graphql.NewNonNull(Uint64)
	NonNullInt64   = graphql.NewNonNull(Int64)
	NonNullBoolean = graphql.NewNonNull(graphql.Boolean)
	NonNullInt     = graphql.NewNonNull(graphql.Int)
	NonNullFloat   = graphql.NewNonNull(graphql.Float)
	NonNullString  = graphql.NewNonNull(graphql.String)
)

func toNonNull(t graphql.Type) graphql.Type {
	if _, ok := t.(*graphql.NonNull); ok {
		return t
	}
	return graphql.NewNonNull(t)
}

// NewListNonNullBoth constructs a [T!]! type. T may already be non-null.
func NewListNonNullBoth(ofType graphql.Type) graphql.Type {
	return graphql.NewNonNull(graphql.NewList(toNonNull(ofType)))
}
