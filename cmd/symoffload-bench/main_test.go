package main

import (
	"context"
	"testing"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/request"
)

var makeAR = testenv.MakeAR

func TestScenarios(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			_, require := makeAR(t)
			require.NoError(runScenario(context.Background(), sc))
		})
	}
}

func TestBench(t *testing.T) {
	assert, require := makeAR(t)

	r, e := openRig(rigConfig{})
	require.NoError(e)
	defer func() { assert.NoError(r.Close()) }()

	for _, w := range []workload{
		{Mode: request.ModeCipher, Cipher: request.AlgAESCBC, Size: 256, Segment: 100},
		{Mode: request.ModeDigest, Auth: request.AlgSHA2_256HMAC, Size: 200},
		{Mode: request.ModeDigest, Auth: request.AlgAESNISTGMAC, Size: 200},
		{Mode: request.ModeAEAD, Cipher: request.AlgChaCha20Poly1305, Size: 100, AAD: 12},
		{Mode: request.ModeETA, Cipher: request.AlgAESICM, Auth: request.AlgSHA1HMAC, Size: 100, AAD: 8, Segment: 30},
	} {
		w.Sessions, w.Workers, w.Count = 2, 4, 40
		res, e := runBench(context.Background(), r.d, w)
		require.NoError(e, "%s", w.Mode)
		assert.Equal(40, res.Requests)
		assert.EqualValues(40, res.Driver.Counters.Completed)
		assert.Equal(res.Driver.Counters.Submitted, res.Driver.Counters.Completed)
		assert.EqualValues(40, res.Driver.Latency.Count)
	}

	var submitted, completed uint64
	for _, inst := range r.d.Instances() {
		submitted += inst.Counters().Submitted
		completed += inst.Counters().Completed
	}
	assert.EqualValues(200, completed)
	assert.Equal(submitted, completed)
}

func TestSplit(t *testing.T) {
	assert, _ := makeAR(t)
	b := make([]byte, 10)
	assert.Len(split(b, 0), 1)
	assert.Len(split(b, 4), 3)
	assert.Len(split(b, 5), 2)
	assert.Equal(10, split(b, 3).Len())
}
