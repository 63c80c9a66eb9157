package nnduration

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/usnistgov/symoffload/core/jsonhelper"
)

// GqlMilliseconds is the GraphQL type of Milliseconds.
var GqlMilliseconds = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "NNMilliseconds",
	Description: "Non-negative milliseconds, either a non-negative integer or a duration string recognized by time.ParseDuration.",
	Serialize: func(value any) any {
		switch d := value.(type) {
		case Milliseconds:
			return d.Duration().String()
		case *Milliseconds:
			return d.Duration().String()
		}
		return nil
	},
	ParseValue: func(value any) any {
		var d Milliseconds
		if e := jsonhelper.Roundtrip(value, &d); e != nil {
			return nil
		}
		return d
	},
	ParseLiteral: func(valueAST ast.Value) any {
		var d Milliseconds
		if e := jsonhelper.Roundtrip(valueAST.GetValue(), &d); e != nil {
			return nil
		}
		return d
	},
})
