package dma_test

import (
	"testing"

	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
)

var makeAR = testenv.MakeAR

func newIOMMU(t testing.TB, maxSeg int) *dma.IOMMU {
	m := dma.NewIOMMU(dma.IOMMUConfig{MaxSegmentSize: maxSeg})
	t.Cleanup(func() {
		if n := m.CountMappings(); n != 0 {
			t.Errorf("%d mappings leaked", n)
		}
	})
	return m
}
