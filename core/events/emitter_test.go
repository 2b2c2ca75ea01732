package events_test

import (
	"testing"

	"github.com/usnistgov/tofino-tm/core/events"
)

type portID uint32

func TestOnCancel(t *testing.T) {
	assert, _ := makeAR(t)

	var added []portID
	nDeleted := 0
	fAdded := func(id portID) { added = append(added, id) }
	fDeleted := func(id portID) { nDeleted++ }

	emitter := events.NewEmitter()
	cancelAdded := emitter.On("PortAdded", fAdded)
	cancelDeleted := emitter.On("PortDeleted", fDeleted)

	emitter.EmitSync("PortAdded", portID(4))
	emitter.EmitSync("PortAdded", portID(9))
	assert.Equal([]portID{4, 9}, added)
	assert.Equal(0, nDeleted)

	emitter.EmitSync("PortDeleted", portID(4))
	assert.Equal(1, nDeleted)

	cancelAdded()
	emitter.EmitSync("PortAdded", portID(12))
	assert.Len(added, 2)

	cancelAdded()
	cancelDeleted()
	emitter.EmitSync("PortDeleted", portID(9))
	assert.Equal(1, nDeleted)
}

func TestEmitOrder(t *testing.T) {
	assert, _ := makeAR(t)

	var order []int
	emitter := events.NewEmitter()
	for i := 0; i < 8; i++ {
		i := i
		emitter.On("QacRxChanged", func(id portID) { order = append(order, i) })
	}
	cancel := emitter.On("QacRxChanged", func(id portID) { order = append(order, -1) })
	cancel()

	emitter.EmitSync("QacRxChanged", portID(1))
	assert.Equal([]int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}
