package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdcgo/sdc-core/internal/discovery"
)

func TestAppSequence_Less(t *testing.T) {
	a := discovery.AppSequence{InstanceID: 1, SequenceID: "s", MessageNumber: 1}
	b := discovery.AppSequence{InstanceID: 1, SequenceID: "s", MessageNumber: 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestAppSequence_differentInstanceOrdersByInstance(t *testing.T) {
	a := discovery.AppSequence{InstanceID: 1, MessageNumber: 99}
	b := discovery.AppSequence{InstanceID: 2, MessageNumber: 1}
	assert.True(t, a.Less(b))
}
