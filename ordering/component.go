package ordering

import (
	"github.com/sarchlab/tlmbus/protocol"
	"github.com/sarchlab/tlmbus/sim/timing"
)

// Component drives a Buffer with a clock. It only ticks while the buffer
// holds responses.
type Component struct {
	*timing.TickingComponent

	buf Buffer
}

// NewComponent creates a Component.
func NewComponent(
	name string,
	engine timing.Engine,
	freq timing.Freq,
	buf Buffer,
) *Component {
	c := &Component{buf: buf}
	c.TickingComponent = timing.NewTickingComponent(name, engine, freq, c)

	return c
}

// Push adds a response to the buffer and wakes the component up.
func (c *Component) Push(p *protocol.Payload) {
	c.buf.Push(p)
	c.TickLater()
}

// Tick ticks the buffer.
func (c *Component) Tick() bool {
	return c.buf.Tick()
}

// Len returns the number of held responses.
func (c *Component) Len() int {
	return c.buf.Len()
}

// Buffer returns the driven buffer.
func (c *Component) Buffer() Buffer {
	return c.buf
}
