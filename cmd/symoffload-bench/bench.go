package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grailbio/base/retry"
	"github.com/urfave/cli/v2"
	"github.com/usnistgov/symoffload/core/hwinfo"
	"github.com/usnistgov/symoffload/core/runningstat"
	"github.com/usnistgov/symoffload/core/subtract"
	"github.com/usnistgov/symoffload/offload"
	"github.com/usnistgov/symoffload/request"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

var submitRetry = retry.Backoff(10*time.Microsecond, 5*time.Millisecond, 2)

// submit processes a request, waiting and resubmitting while the driver reports a retryable condition.
func submit(ctx context.Context, s *offload.Session, req *request.Request, nRetries *atomic.Uint64) error {
	for i := 0; ; i++ {
		e := s.Do(ctx, req)
		if !errors.Is(e, request.ErrRetry) {
			return e
		}
		nRetries.Inc()
		if e := retry.Wait(ctx, submitRetry, i); e != nil {
			return e
		}
	}
}

type benchResult struct {
	Requests int
	Bytes    int
	Retries  uint64
	Elapsed  time.Duration
	// Driver is the change of driver counters and latency during the run.
	Driver driverReading
}

func (r benchResult) String() string {
	sec := r.Elapsed.Seconds()
	return fmt.Sprintf("%d requests, %d bytes, %d retries in %v: %.0f req/s, %.2f MB/s",
		r.Requests, r.Bytes, r.Retries, r.Elapsed, float64(r.Requests)/sec, float64(r.Bytes)/sec/1e6)
}

// driverReading is the sum of counters and latency of all instances.
type driverReading struct {
	Counters offload.Counters
	Latency  runningstat.Snapshot
}

func readDriver(d *offload.Driver) (r driverReading) {
	for _, inst := range d.Instances() {
		cnt := inst.Counters()
		r.Counters.Submitted += cnt.Submitted
		r.Counters.Completed += cnt.Completed
		r.Counters.Failed += cnt.Failed
		r.Counters.Integrity += cnt.Integrity
		r.Counters.Retries += cnt.Retries
		r.Counters.Exhausted += cnt.Exhausted
		r.Counters.Rejected += cnt.Rejected
		r.Latency = r.Latency.Add(inst.Latency())
	}
	return r
}

// runBench drives a workload through d.
func runBench(ctx context.Context, d *offload.Driver, w workload) (res benchResult, e error) {
	w.applyDefaults()
	sessions := make([]*offload.Session, w.Sessions)
	for i := range sessions {
		if sessions[i], e = d.NewSession(w.sessionParams()); e != nil {
			return res, e
		}
	}
	defer func() {
		for _, s := range sessions {
			if s != nil {
				s.Close()
			}
		}
	}()

	var nRetries atomic.Uint64
	eg, ctx := errgroup.WithContext(ctx)
	r0, t0 := readDriver(d), time.Now()
	for i := 0; i < w.Workers; i++ {
		n := w.Count / w.Workers
		if i < w.Count%w.Workers {
			n++
		}
		s := sessions[i%len(sessions)]
		eg.Go(func() error {
			for j := 0; j < n; j++ {
				req, e := w.newRequest(s.Params())
				if e != nil {
					return e
				}
				if e := submit(ctx, s, req, &nRetries); e != nil {
					return e
				}
			}
			return nil
		})
	}
	e = eg.Wait()
	return benchResult{
		Requests: w.Count,
		Bytes:    w.Count * w.Size,
		Retries:  nRetries.Load(),
		Elapsed:  time.Since(t0),
		Driver:   subtract.Sub(readDriver(d), r0),
	}, e
}

var workloadFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "mode",
		Usage: "session `mode`: cipher, digest, aead, eta",
		Value: "aead",
	},
	&cli.StringFlag{
		Name:  "cipher",
		Usage: "cipher `algorithm`",
		Value: "aes-nist-gcm-16",
	},
	&cli.StringFlag{
		Name:  "auth",
		Usage: "authentication `algorithm`",
		Value: "none",
	},
	&cli.IntFlag{
		Name:  "size",
		Usage: "payload length in `octets`",
		Value: 1024,
	},
	&cli.IntFlag{
		Name:  "segment",
		Usage: "buffer segment length in `octets`, 0 for one segment",
	},
	&cli.IntFlag{
		Name:  "aad",
		Usage: "AAD length in `octets`",
	},
	&cli.IntFlag{
		Name:  "sessions",
		Usage: "number of sessions",
		Value: 4,
	},
	&cli.IntFlag{
		Name:  "workers",
		Usage: "number of concurrent submitters",
		Value: 8,
	},
	&cli.IntFlag{
		Name:  "count",
		Usage: "total number of requests",
		Value: 10000,
	},
}

func workloadFromFlags(c *cli.Context) (w workload, e error) {
	if e = w.Mode.UnmarshalText([]byte(c.String("mode"))); e != nil {
		return w, e
	}
	if w.Cipher, e = request.ParseAlgorithm(c.String("cipher")); e != nil {
		return w, e
	}
	if w.Auth, e = request.ParseAlgorithm(c.String("auth")); e != nil {
		return w, e
	}
	w.Size = c.Int("size")
	w.Segment = c.Int("segment")
	w.AAD = c.Int("aad")
	w.Sessions = c.Int("sessions")
	w.Workers = c.Int("workers")
	w.Count = c.Int("count")
	return w, nil
}

func init() {
	defineCommand(&cli.Command{
		Name:  "bench",
		Usage: "Generate concurrent load.",
		Flags: workloadFlags,
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

			if cpu, e := hwinfo.Default.CPU(); e == nil {
				fmt.Printf("cpu: %s, %d logical cores, accelerations %v\n", cpu.Model, cpu.LogicalCores, cpu.Accelerations())
			}
			res, e := runBench(c.Context, r.d, w)
			if e != nil {
				return e
			}
			fmt.Println(res)
			fmt.Printf("counters: %+v\n", res.Driver.Counters)
			lat := res.Driver.Latency
			fmt.Printf("latency: mean %v stdev %v over %d samples\n",
				time.Duration(lat.Mean), time.Duration(lat.Stdev), lat.Len)
			return nil
		},
	})
}
