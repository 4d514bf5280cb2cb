// Package id names transactions and events.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out IDs that are unique within its scope.
type IDGenerator interface {
	Generate() string
}

// Counter generates the decimal IDs 1, 2, 3 and so on.
type Counter struct {
	last atomic.Uint64
}

// Generate returns the next number.
func (c *Counter) Generate() string {
	return strconv.FormatUint(c.last.Add(1), 10)
}

// Unique generates globally unique xid strings.
type Unique struct{}

// Generate returns a fresh xid.
func (Unique) Generate() string {
	return xid.New().String()
}

var process atomic.Pointer[IDGenerator]

func init() {
	UseSequentialIDGenerator()
}

func use(g IDGenerator) {
	process.Store(&g)
}

// Generate returns an ID from the process-wide generator.
func Generate() string {
	return (*process.Load()).Generate()
}

// UseSequentialIDGenerator makes Generate count up from 1 again, so that runs
// with the same seed name things the same way. This is the default.
func UseSequentialIDGenerator() {
	use(&Counter{})
}

// UseParallelIDGenerator makes Generate return xids. Names are no longer
// reproducible.
func UseParallelIDGenerator() {
	use(Unique{})
}

// NewIDGenerator returns a counter independent from the process-wide one.
func NewIDGenerator() IDGenerator {
	return &Counter{}
}
