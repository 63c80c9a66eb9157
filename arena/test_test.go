package arena_test

import (
	"testing"

	"github.com/usnistgov/symoffload/arena"
	"github.com/usnistgov/symoffload/core/testenv"
	"github.com/usnistgov/symoffload/dma"
	"go4.org/must"
)

var makeAR = testenv.MakeAR

func newArena(t testing.TB, cfg arena.Config) (*arena.Arena, *dma.IOMMU) {
	m := dma.NewIOMMU(dma.IOMMUConfig{})
	a, e := arena.New(m, cfg)
	if e != nil {
		t.Fatal(e)
	}
	t.Cleanup(func() {
		must.Close(a)
		if n := m.CountMappings(); n != 0 {
			t.Errorf("%d mappings leaked", n)
		}
	})
	return a, m
}
