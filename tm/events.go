package tm

import (
	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

const (
	evtPortAdded    = "PortAdded"
	evtPortDeleted  = "PortDeleted"
	evtQacRxChanged = "QacRxChanged"
	evtPpgAllocated = "PpgAllocated"
	evtPpgFreed     = "PpgFreed"
	evtQueuesCarved = "QueuesCarved"
	evtWriteFailed  = "WriteFailed"
)

type queuedEvent struct {
	name string
	args []interface{}
}

// queueEvent schedules an event to be emitted when the device lock is released.
func (dev *Device) queueEvent(name string, args ...interface{}) {
	dev.queued = append(dev.queued, queuedEvent{name, args})
}

// OnPortAdded registers a callback when a port is added.
// Returns a function that cancels the callback registration.
func (dev *Device) OnPortAdded(cb func(port tmdef.DevPort, speed tmdef.Speed)) (cancel func()) {
	return dev.emitter.On(evtPortAdded, cb)
}

// OnPortDeleted registers a callback when a port is deleted.
// Returns a function that cancels the callback registration.
func (dev *Device) OnPortDeleted(cb func(port tmdef.DevPort)) (cancel func()) {
	return dev.emitter.On(evtPortDeleted, cb)
}

// OnQacRxChanged registers a callback when QAC-rx of a port is enabled or disabled.
// Returns a function that cancels the callback registration.
func (dev *Device) OnQacRxChanged(cb func(port tmdef.DevPort, enabled bool)) (cancel func()) {
	return dev.emitter.On(evtQacRxChanged, cb)
}

// OnPpgAllocated registers a callback when a PPG is allocated.
// Returns a function that cancels the callback registration.
func (dev *Device) OnPpgAllocated(cb func(h tmdef.PpgHandle)) (cancel func()) {
	return dev.emitter.On(evtPpgAllocated, cb)
}

// OnPpgFreed registers a callback when a PPG is freed.
// Returns a function that cancels the callback registration.
func (dev *Device) OnPpgFreed(cb func(h tmdef.PpgHandle)) (cancel func()) {
	return dev.emitter.On(evtPpgFreed, cb)
}

// OnQueuesCarved registers a callback when queues are carved on a port.
// Returns a function that cancels the callback registration.
func (dev *Device) OnQueuesCarved(cb func(port tmdef.DevPort, profile int)) (cancel func()) {
	return dev.emitter.On(evtQueuesCarved, cb)
}

// OnWriteFailed registers a callback when a hardware write fails.
// Returns a function that cancels the callback registration.
func (dev *Device) OnWriteFailed(cb func(r Resource, e error)) (cancel func()) {
	return dev.emitter.On(evtWriteFailed, cb)
}
