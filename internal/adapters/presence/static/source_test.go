package static

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceNotifiesOnlyOnTransitions(t *testing.T) {
	t.Parallel()

	source := NewSource(true)
	var events []bool
	unsubscribe := source.Subscribe(func(online bool) { events = append(events, online) })

	source.Set(true)
	source.Set(false)
	source.Set(false)
	source.Set(true)

	assert.Equal(t, []bool{false, true}, events)
	assert.True(t, source.Online())

	unsubscribe()
	assert.Equal(t, 0, source.Listeners())

	source.Set(false)
	assert.Equal(t, []bool{false, true}, events)
}
