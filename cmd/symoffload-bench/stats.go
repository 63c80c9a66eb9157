package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/usnistgov/symoffload/core/gqlserver"
	"github.com/usnistgov/symoffload/core/jsonhelper"
)

const statsQuery = `{
	offload {
		sessions
		hardwareVerify
		capabilities { maxTransferSize maxAADSize maxIVSize maxDigestSize }
		teardown { budget }
		instances {
			id capacity available inUse sessions
			counters { submitted completed failed integrity retries exhausted rejected }
			sessionCache { inits updates removals removeFailures }
			latency { count len mean stdev min max }
		}
	}
}`

type statsInstance struct {
	ID       int `json:"id"`
	Counters struct {
		Submitted json.Number `json:"submitted"`
		Completed json.Number `json:"completed"`
	} `json:"counters"`
}

func init() {
	defineCommand(&cli.Command{
		Name:  "stats",
		Usage: "Generate a short load, then print the GraphQL driver view.",
		Flags: workloadFlags,
		Before: func(c *cli.Context) error {
			if !c.IsSet("count") {
				return c.Set("count", "1000")
			}
			return nil
		},
		Action: func(c *cli.Context) (e error) {
			w, e := workloadFromFlags(c)
			if e != nil {
				return e
			}
			r, e := openRig(rigCfg)
			if e != nil {
				return e
			}
			defer func() {
				if e0 := r.Close(); e == nil {
					e = e0
				}
			}()

			if _, e = runBench(c.Context, r.d, w); e != nil {
				return e
			}

			res := gqlserver.Do(c.Context, statsQuery, nil)
			if len(res.Errors) > 0 {
				return errors.New(res.Errors[0].Message)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if e = enc.Encode(res.Data); e != nil {
				return e
			}

			var view struct {
				Offload struct {
					Instances []statsInstance `json:"instances"`
				} `json:"offload"`
			}
			if e = jsonhelper.Roundtrip(res.Data, &view); e != nil {
				return e
			}
			for _, inst := range view.Offload.Instances {
				if inst.Counters.Submitted != inst.Counters.Completed {
					return fmt.Errorf("instance %d: %s submitted but %s completed",
						inst.ID, inst.Counters.Submitted, inst.Counters.Completed)
				}
			}
			return nil
		},
	})
}
