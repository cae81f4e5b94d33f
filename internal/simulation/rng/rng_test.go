package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	a := New(42, "run-1")
	b := New(42, "run-1")
	assert.Equal(t, a.Normal(0, 1), b.Normal(0, 1))
}

func TestNewDiffersByRunID(t *testing.T) {
	a := New(42, "run-1").Normal(0, 1)
	b := New(42, "run-2").Normal(0, 1)
	assert.NotEqual(t, a, b)
}

func TestTruncatedNormalWithinBounds(t *testing.T) {
	s := New(1, "r")
	for i := 0; i < 500; i++ {
		v := s.TruncatedNormal(250_000, 50_000, 100_000, 500_000)
		assert.GreaterOrEqual(t, v, 100_000.0)
		assert.LessOrEqual(t, v, 500_000.0)
	}
}

func TestTruncatedNormalZeroStdDevClampsToMean(t *testing.T) {
	s := New(1, "r")
	v := s.TruncatedNormal(0.9, 0, 0.5, 0.85)
	assert.Equal(t, 0.85, v)
}

func TestCategoricalRespectsZeroWeightSum(t *testing.T) {
	s := New(1, "r")
	assert.Equal(t, 0, s.Categorical([]float64{0, 0, 0}))
}

func TestCategoricalDistribution(t *testing.T) {
	s := New(7, "r")
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[s.Categorical([]float64{0.6, 0.3, 0.1})]++
	}
	assert.Greater(t, counts[0], counts[1])
	assert.Greater(t, counts[1], counts[2])
}

func TestChildStreamsAreDeterministic(t *testing.T) {
	a := New(5, "r")
	b := New(5, "r")
	ca := a.Child(3)
	cb := b.Child(3)
	assert.Equal(t, ca.Normal(0, 1), cb.Normal(0, 1))
}
