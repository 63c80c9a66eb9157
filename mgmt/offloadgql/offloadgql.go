// Package offloadgql exposes the offload driver and log levels via GraphQL.
package offloadgql

import (
	"errors"
	"reflect"
	"sync"

	"github.com/graphql-go/graphql"
	"github.com/usnistgov/symoffload/core/gqlserver"
	"github.com/usnistgov/symoffload/core/hwinfo"
	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/core/nnduration"
	"github.com/usnistgov/symoffload/core/runningstat"
	"github.com/usnistgov/symoffload/engine"
	"github.com/usnistgov/symoffload/offload"
	"github.com/usnistgov/symoffload/session"
)

// ErrNoDriver indicates no driver is bound.
var ErrNoDriver = errors.New("offload driver not bound")

var (
	driverLock sync.RWMutex
	driver     *offload.Driver
)

// Bind publishes a driver. Pass nil to unpublish.
func Bind(d *offload.Driver) {
	driverLock.Lock()
	defer driverLock.Unlock()
	driver = d
}

func getDriver() (*offload.Driver, error) {
	driverLock.RLock()
	defer driverLock.RUnlock()
	if driver == nil {
		return nil, ErrNoDriver
	}
	return driver, nil
}

// GraphQL types.
var (
	GqlCountersType      *graphql.Object
	GqlCacheCountersType *graphql.Object
	GqlCapabilitiesType  *graphql.Object
	GqlTeardownType      *graphql.Object
	GqlLatencyType       *graphql.Object
	GqlInstanceType      *graphql.Object
	GqlOffloadType       *graphql.Object
	GqlLoggerType        *graphql.Object
	GqlCPUType           *graphql.Object
)

func init() {
	GqlCountersType = graphql.NewObject(graphql.ObjectConfig{
		Name:   "OffloadCounters",
		Fields: gqlserver.BindFields[offload.Counters](nil),
	})
	GqlCacheCountersType = graphql.NewObject(graphql.ObjectConfig{
		Name:   "SessionCacheCounters",
		Fields: gqlserver.BindFields[session.Counters](nil),
	})
	GqlCapabilitiesType = graphql.NewObject(graphql.ObjectConfig{
		Name:   "EngineCapabilities",
		Fields: gqlserver.BindFields[engine.Capabilities](nil),
	})
	GqlTeardownType = graphql.NewObject(graphql.ObjectConfig{
		Name: "TeardownPolicy",
		Fields: gqlserver.BindFields[session.TeardownConfig](gqlserver.FieldTypes{
			reflect.TypeOf(nnduration.Milliseconds(0)): nnduration.GqlMilliseconds,
		}),
	})
	GqlTeardownType.AddFieldConfig("budget", &graphql.Field{
		Description: "Longest total wait allowed by the policy.",
		Type:        graphql.NewNonNull(nnduration.GqlMilliseconds),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			cfg := p.Source.(session.TeardownConfig)
			return nnduration.Milliseconds(cfg.Budget().Milliseconds()), nil
		},
	})

	GqlLatencyType = graphql.NewObject(graphql.ObjectConfig{
		Name:   "RunningStatSnapshot",
		Fields: gqlserver.BindFields[runningstat.Snapshot](nil),
	})

	GqlInstanceType = graphql.NewObject(graphql.ObjectConfig{
		Name: "OffloadInstance",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: gqlserver.NonNullInt,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).ID(), nil
				},
			},
			"capacity": &graphql.Field{
				Description: "Number of cookies in the arena.",
				Type:        gqlserver.NonNullInt,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).Arena().Capacity(), nil
				},
			},
			"available": &graphql.Field{
				Description: "Number of free cookies.",
				Type:        gqlserver.NonNullInt,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).Arena().CountAvailable(), nil
				},
			},
			"inUse": &graphql.Field{
				Description: "Number of in-flight requests.",
				Type:        gqlserver.NonNullInt,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).Arena().CountInUse(), nil
				},
			},
			"sessions": &graphql.Field{
				Description: "Number of open sessions.",
				Type:        gqlserver.NonNullInt,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).CountSessions(), nil
				},
			},
			"counters": &graphql.Field{
				Type: graphql.NewNonNull(GqlCountersType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).Counters(), nil
				},
			},
			"latency": &graphql.Field{
				Description: "Submission-to-completion latency in nanoseconds.",
				Type:        graphql.NewNonNull(GqlLatencyType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).Latency(), nil
				},
			},
			"sessionCache": &graphql.Field{
				Type: graphql.NewNonNull(GqlCacheCountersType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Instance).Cache().Counters(), nil
				},
			},
		},
	})

	GqlOffloadType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Offload",
		Fields: graphql.Fields{
			"config": &graphql.Field{
				Description: "Driver configuration.",
				Type:        gqlserver.NonNullJSON,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Driver).Config(), nil
				},
			},
			"hardwareVerify": &graphql.Field{
				Type: gqlserver.NonNullBoolean,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Driver).Config().Session.HardwareVerify, nil
				},
			},
			"teardown": &graphql.Field{
				Description: "Session teardown quiescence policy.",
				Type:        graphql.NewNonNull(GqlTeardownType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					d := p.Source.(*offload.Driver)
					return d.Instances()[0].Cache().Config().Teardown, nil
				},
			},
			"capabilities": &graphql.Field{
				Type: graphql.NewNonNull(GqlCapabilitiesType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Driver).Engine().Capabilities(), nil
				},
			},
			"sessions": &graphql.Field{
				Description: "Number of open sessions.",
				Type:        gqlserver.NonNullInt,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Driver).CountSessions(), nil
				},
			},
			"instances": &graphql.Field{
				Type: gqlserver.NewListNonNullBoth(GqlInstanceType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*offload.Driver).Instances(), nil
				},
			},
		},
	})

	gqlserver.AddQuery(&graphql.Field{
		Name:        "offload",
		Description: "Offload driver status.",
		Type:        graphql.NewNonNull(GqlOffloadType),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return getDriver()
		},
	})

	GqlCPUType = graphql.NewObject(graphql.ObjectConfig{
		Name:   "HostCPU",
		Fields: gqlserver.BindFields[hwinfo.CPU](nil),
	})
	GqlCPUType.AddFieldConfig("accelerations", &graphql.Field{
		Description: "Instruction set extensions that accelerate the software engine.",
		Type:        gqlserver.NewListNonNullBoth(graphql.String),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(hwinfo.CPU).Accelerations(), nil
		},
	})

	gqlserver.AddQuery(&graphql.Field{
		Name:        "hostCPU",
		Description: "Host processor information.",
		Type:        graphql.NewNonNull(GqlCPUType),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return hwinfo.Default.CPU()
		},
	})

	GqlLoggerType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Logger",
		Fields: graphql.Fields{
			"package": &graphql.Field{
				Type: gqlserver.NonNullString,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(logging.PkgLevel).Package(), nil
				},
			},
			"level": &graphql.Field{
				Description: "Log level letter.",
				Type:        gqlserver.NonNullString,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return string(p.Source.(logging.PkgLevel).Level()), nil
				},
			},
		},
	})

	gqlserver.AddQuery(&graphql.Field{
		Name:        "loggers",
		Description: "Log levels of all packages.",
		Type:        gqlserver.NewListNonNullBoth(GqlLoggerType),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return logging.ListLevels(), nil
		},
	})

	gqlserver.AddMutation(&graphql.Field{
		Name:        "setLogLevel",
		Description: "Change log level of a package.",
		Args: graphql.FieldConfigArgument{
			"package": &graphql.ArgumentConfig{Type: gqlserver.NonNullString},
			"level": &graphql.ArgumentConfig{
				Description: "Log level letter: V, D, I, W, E, F.",
				Type:        gqlserver.NonNullString,
			},
		},
		Type: graphql.NewNonNull(GqlLoggerType),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			pl := logging.FindLevel(p.Args["package"].(string))
			if pl == nil {
				return nil, errors.New("package not found")
			}
			if e := pl.TrySetLevel(p.Args["level"].(string)); e != nil {
				return nil, e
			}
			return *pl, nil
		},
	})
}
