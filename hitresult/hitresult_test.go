package hitresult

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsJSONOrder(t *testing.T) {
	s := Statistics{
		SliderTailHit: 400,
		Miss:          2,
		Great:         1764,
		LargeTickMiss: 0,
		Ok:            34,
		Meh:           4,
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"miss":2,"meh":4,"ok":34,"great":1764,"large_tick_miss":0,"slider_tail_hit":400}`, string(b))

	var back Statistics
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s, back)
}

func TestStatisticsPresence(t *testing.T) {
	s := Statistics{Great: 10, LargeTickMiss: 0}
	assert.True(t, s.Has(LargeTickMiss))
	assert.False(t, s.Has(SliderTailHit))
	assert.Equal(t, 10, s.Sum())

	c := s.Clone()
	c[Great] = 1
	assert.Equal(t, 10, s[Great])
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("amazing")
	assert.Error(t, err)

	r, err := Parse("small_tick_hit")
	require.NoError(t, err)
	assert.Equal(t, SmallTickHit, r)
}
