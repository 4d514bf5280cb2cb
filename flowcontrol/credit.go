package flowcontrol

// A CreditCounter counts the credits granted by a receiver. Each transmitted
// request consumes one credit. A sender without credits queues until the
// receiver grants more.
type CreditCounter struct {
	name    string
	credits int
	granted uint64
	waiters []func()
}

// NewCreditCounter creates a counter that starts with the given credits.
func NewCreditCounter(name string, initial int) *CreditCounter {
	return &CreditCounter{name: name, credits: initial}
}

// Name returns the name of the counter.
func (c *CreditCounter) Name() string {
	return c.name
}

// Grant adds n credits and serves queued senders in FIFO order.
func (c *CreditCounter) Grant(n int) {
	c.credits += n
	c.granted += uint64(n)

	for c.credits > 0 && len(c.waiters) > 0 {
		fn := c.waiters[0]
		c.waiters[0] = nil
		c.waiters = c.waiters[1:]
		c.credits--

		fn()
	}
}

// TryConsume takes one credit if there is any and nobody is queued.
func (c *CreditCounter) TryConsume() bool {
	if c.credits == 0 || len(c.waiters) > 0 {
		return false
	}

	c.credits--

	return true
}

// Consume takes one credit and runs fn, or queues fn until a credit is
// granted.
func (c *CreditCounter) Consume(fn func()) {
	if c.TryConsume() {
		fn()
		return
	}

	c.waiters = append(c.waiters, fn)
}

// Available returns the number of unused credits.
func (c *CreditCounter) Available() int {
	return c.credits
}

// Granted returns the total number of credits ever granted.
func (c *CreditCounter) Granted() uint64 {
	return c.granted
}

// Waiting returns the number of senders queued for a credit.
func (c *CreditCounter) Waiting() int {
	return len(c.waiters)
}
