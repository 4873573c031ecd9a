package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSources(t *testing.T) {
	assert.Nil(t, splitSources(""))
	assert.Equal(t, []string{"KOREAN_AIR"}, splitSources("KOREAN_AIR"))
	assert.Equal(t,
		[]string{"KOREAN_AIR", "KIWI", "GOOGLE_FLIGHTS"},
		splitSources(" KOREAN_AIR, KIWI ,GOOGLE_FLIGHTS,"))
}
