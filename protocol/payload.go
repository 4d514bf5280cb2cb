package protocol

import "fmt"

// Payload holds the fields of a transaction that the engines, the ordering
// buffers and the checker inspect. A Payload is shared between the
// initiator, the target and any observer; its identity (the pointer) is
// what ties phases of the same transaction together.
type Payload struct {
	ID          uint32
	Command     Command
	Address     uint64
	BurstLength int
	BeatBytes   int
	QoS         uint8
	Family      Family
	Snoop       bool
	Resp        RespStatus

	// Credits is the number of credits granted by a CHICredit payload.
	Credits int
}

// ByteSize returns the number of bytes moved by the whole burst.
func (p *Payload) ByteSize() int {
	return p.Beats() * p.BeatBytes
}

// Beats returns the burst length, treating a zero length as a single beat.
func (p *Payload) Beats() int {
	if p.BurstLength < 1 {
		return 1
	}

	return p.BurstLength
}

func (p *Payload) String() string {
	snoop := ""
	if p.Snoop {
		snoop = " snoop"
	}

	return fmt.Sprintf("%s %s%s id=%d addr=0x%x len=%d",
		p.Family, p.Command, snoop, p.ID, p.Address, p.Beats())
}

// PayloadBuilder can build payloads.
type PayloadBuilder struct {
	id          uint32
	command     Command
	address     uint64
	burstLength int
	beatBytes   int
	qos         uint8
	family      Family
	snoop       bool
}

// MakePayloadBuilder creates a builder for single beat AXI4 reads of 8 bytes.
func MakePayloadBuilder() PayloadBuilder {
	return PayloadBuilder{
		command:     Read,
		burstLength: 1,
		beatBytes:   8,
		family:      AXI4,
	}
}

// WithID sets the transaction ID of the payload to build.
func (b PayloadBuilder) WithID(id uint32) PayloadBuilder {
	b.id = id
	return b
}

// WithCommand sets the command of the payload to build.
func (b PayloadBuilder) WithCommand(cmd Command) PayloadBuilder {
	b.command = cmd
	return b
}

// WithAddress sets the address of the payload to build.
func (b PayloadBuilder) WithAddress(addr uint64) PayloadBuilder {
	b.address = addr
	return b
}

// WithBurstLength sets the number of beats of the payload to build.
func (b PayloadBuilder) WithBurstLength(n int) PayloadBuilder {
	b.burstLength = n
	return b
}

// WithBeatBytes sets the number of bytes moved per beat.
func (b PayloadBuilder) WithBeatBytes(n int) PayloadBuilder {
	b.beatBytes = n
	return b
}

// WithQoS sets the QoS value of the payload to build.
func (b PayloadBuilder) WithQoS(qos uint8) PayloadBuilder {
	b.qos = qos
	return b
}

// WithFamily sets the protocol family of the payload to build.
func (b PayloadBuilder) WithFamily(f Family) PayloadBuilder {
	b.family = f
	return b
}

// AsSnoop marks the payload to build as a coherence snoop.
func (b PayloadBuilder) AsSnoop() PayloadBuilder {
	b.snoop = true
	return b
}

// Build creates a new Payload.
func (b PayloadBuilder) Build() *Payload {
	return &Payload{
		ID:          b.id,
		Command:     b.command,
		Address:     b.address,
		BurstLength: b.burstLength,
		BeatBytes:   b.beatBytes,
		QoS:         b.qos,
		Family:      b.family,
		Snoop:       b.snoop,
	}
}
