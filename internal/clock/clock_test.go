package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimAdvance(t *testing.T) {
	c := NewSim(time.Second)
	assert.Equal(t, time.Second, c.Now())

	assert.Equal(t, 3*time.Second, c.Advance(2*time.Second))
	assert.Equal(t, 3*time.Second, c.Advance(-time.Hour), "negative advance must be ignored")

	c.Set(10 * time.Minute)
	assert.Equal(t, 10*time.Minute, c.Now())
}
