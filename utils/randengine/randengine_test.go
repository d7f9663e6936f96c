package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/randengine"
)

func TestPoissonReproducible(t *testing.T) {
	a, b := randengine.New(42), randengine.New(42)
	for range 100 {
		assert.Equal(t, a.Poisson(2.5), b.Poisson(2.5))
	}
}

func TestPoissonMean(t *testing.T) {
	e := randengine.New(7)
	assert.Equal(t, 0, e.Poisson(0))
	assert.Equal(t, 0, e.Poisson(-1))

	n, sum := 20000, 0
	for range n {
		sum += e.Poisson(3)
	}
	assert.InDelta(t, 3., float64(sum)/float64(n), 0.1)
}
