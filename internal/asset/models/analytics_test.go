package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaturityScore_Brackets(t *testing.T) {
	cases := map[uint64]uint8{
		0:    25,
		100:  25,
		101:  50,
		500:  50,
		501:  75,
		1000: 75,
		1001: 100,
		5000: 100,
	}
	for tenure, want := range cases {
		assert.Equal(t, want, MaturityScore(tenure), "tenure %d", tenure)
	}
}

func TestMaturityScore_Monotone(t *testing.T) {
	prev := MaturityScore(0)
	for tenure := uint64(1); tenure <= 1500; tenure++ {
		got := MaturityScore(tenure)
		require.GreaterOrEqual(t, got, prev, "score decreased at tenure %d", tenure)
		prev = got
	}
}

func TestNewAnalytics(t *testing.T) {
	a, err := NewAsset(validRegisterRequest(), "alice", 100, time.Now(), DefaultLimits())
	require.NoError(t, err)
	a.LastModifiedAt = 400

	got := NewAnalytics(a, 3, 700)

	assert.Equal(t, uint64(600), got.Tenure)
	assert.Equal(t, uint64(300), got.ModificationAge)
	assert.Equal(t, uint8(75), got.MaturityScore)
	assert.Equal(t, 2, got.TagCount)
	assert.Equal(t, uint64(2048), got.SizeBytes)
	assert.Equal(t, 3, got.AccessComplexity)
}

func TestPerformanceScore(t *testing.T) {
	assert.Equal(t, uint64(0), PerformanceScore(0, 0))
	assert.Equal(t, uint64(5*4+2*3), PerformanceScore(4, 3))
}
