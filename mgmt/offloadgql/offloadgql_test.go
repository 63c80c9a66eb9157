package offloadgql_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/core/gqlserver"
	"github.com/usnistgov/symoffload/core/hwinfo"
	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"github.com/usnistgov/symoffload/engine/swengine"
	"github.com/usnistgov/symoffload/mgmt/offloadgql"
	"github.com/usnistgov/symoffload/offload"
	"github.com/usnistgov/symoffload/request"
	"go4.org/must"
)

func query(t *testing.T, q string, vars map[string]any) map[string]any {
	res := gqlserver.Do(context.Background(), q, vars)
	if len(res.Errors) > 0 {
		t.Fatal(res.Errors)
	}
	return res.Data.(map[string]any)
}

func TestOffload(t *testing.T) {
	assert, require := makeAR(t)

	m := dma.NewIOMMU(dma.IOMMUConfig{})
	eng := swengine.New(m, swengine.Config{})
	defer must.Close(eng)
	d, e := offload.New(eng, m, offload.Config{
		NInstances: 2,
		Arena:      arena.Config{Capacity: 8},
	})
	require.NoError(e)
	defer must.Close(d)

	offloadgql.Bind(d)
	defer offloadgql.Bind(nil)

	key, iv, plain := make([]byte, 16), make([]byte, 16), make([]byte, 32)
	testenv.RandBytes(key)
	testenv.RandBytes(plain)
	s, e := d.NewSession(request.SessionParams{
		Mode:      request.ModeCipher,
		Cipher:    request.AlgAESCBC,
		CipherKey: key,
		IVLen:     16,
	})
	require.NoError(e)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(s.Do(ctx, &request.Request{
		Op:         request.Encrypt,
		Buf:        request.Buffer{plain},
		PayloadLen: 32,
		IV:         iv,
	}))

	data := query(t, `{
		offload {
			sessions
			hardwareVerify
			capabilities { maxIVSize maxDigestSize }
			teardown { budget }
			instances {
				id capacity available inUse sessions
				counters { submitted completed failed }
				sessionCache { inits }
				latency { count mean max }
			}
		}
	}`, nil)
	o := data["offload"].(map[string]any)
	assert.Equal(1, o["sessions"])
	assert.Equal(false, o["hardwareVerify"])
	assert.Equal(eng.Capabilities().MaxIVSize, o["capabilities"].(map[string]any)["maxIVSize"])
	assert.NotNil(o["teardown"].(map[string]any)["budget"])

	instances := o["instances"].([]any)
	require.Len(instances, 2)
	inst := instances[s.Instance().ID()].(map[string]any)
	assert.Equal(s.Instance().ID(), inst["id"])
	assert.Equal(8, inst["capacity"])
	assert.Equal(8, inst["available"])
	assert.Equal(0, inst["inUse"])
	assert.Equal(1, inst["sessions"])
	counters := inst["counters"].(map[string]any)
	assert.Equal("1", fmt.Sprint(counters["submitted"]))
	assert.Equal("1", fmt.Sprint(counters["completed"]))
	assert.Equal("0", fmt.Sprint(counters["failed"]))
	assert.Equal("1", fmt.Sprint(inst["sessionCache"].(map[string]any)["inits"]))
	latency := inst["latency"].(map[string]any)
	assert.Equal("1", fmt.Sprint(latency["count"]))
	assert.NotNil(latency["max"])

	require.NoError(s.Close())
	data = query(t, `{ offload { sessions } }`, nil)
	assert.Equal(0, data["offload"].(map[string]any)["sessions"])
}

func TestUnbound(t *testing.T) {
	assert, _ := makeAR(t)
	offloadgql.Bind(nil)
	res := gqlserver.Do(context.Background(), `{ offload { sessions } }`, nil)
	assert.NotEmpty(res.Errors)
}

func TestLogLevel(t *testing.T) {
	assert, require := makeAR(t)
	pl := logging.GetLevel("offload")
	saved := string(pl.Level())
	defer pl.SetLevel(saved)

	data := query(t, `{ loggers { package level } }`, nil)
	found := false
	for _, item := range data["loggers"].([]any) {
		if item.(map[string]any)["package"] == "offload" {
			found = true
		}
	}
	assert.True(found)

	data = query(t, `mutation setLogLevel($p: String!, $l: String!) { setLogLevel(package: $p, level: $l) { package level } }`,
		map[string]any{"p": "offload", "l": "D"})
	assert.Equal("D", data["setLogLevel"].(map[string]any)["level"])
	assert.EqualValues('D', pl.Level())

	res := gqlserver.Do(context.Background(), `mutation { setLogLevel(package: "nonexistent", level: "D") { level } }`, nil)
	require.NotEmpty(res.Errors)

	res = gqlserver.Do(context.Background(), `mutation { setLogLevel(package: "offload", level: "Q") { level } }`, nil)
	require.NotEmpty(res.Errors)
	assert.EqualValues('D', pl.Level())
}

func TestHostCPU(t *testing.T) {
	assert, _ := makeAR(t)
	cpu, e := hwinfo.Default.CPU()
	if e != nil {
		t.Skip(e)
	}

	data := query(t, `{ hostCPU { model logicalCores accelerations } }`, nil)
	host := data["hostCPU"].(map[string]any)
	assert.Equal(cpu.Model, host["model"])
	assert.Equal(cpu.LogicalCores, host["logicalCores"])
	assert.Len(host["accelerations"], len(cpu.Accelerations()))
}
