package protocol

import (
	"log"
	"sort"
	"sync"
)

// FamilyInfo describes how the engines must treat a protocol family.
type FamilyInfo struct {
	Family Family
	Name   string

	// NeedsAck is set for families whose initiator acknowledges the end of
	// the response (ACE RACK/WACK, CHI CompAck).
	NeedsAck bool

	// CreditBased is set for families where a request may only be sent with
	// a credit granted by the receiver.
	CreditBased bool

	// CarriesSnoops is set for families that can carry coherence snoops.
	CarriesSnoops bool
}

// Registry is the table of the protocol families known to a simulation. It is
// built once when the simulation is set up and passed to the components that
// need to interpret payloads.
type Registry struct {
	lock     sync.RWMutex
	families map[Family]FamilyInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[Family]FamilyInfo)}
}

// NewDefaultRegistry creates a registry that knows all the built-in families.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(FamilyInfo{Family: AXI3, Name: "AXI3"})
	r.Register(FamilyInfo{Family: AXI4, Name: "AXI4"})
	r.Register(FamilyInfo{
		Family: ACE, Name: "ACE", NeedsAck: true, CarriesSnoops: true,
	})
	r.Register(FamilyInfo{Family: ACELite, Name: "ACE-Lite"})
	r.Register(FamilyInfo{
		Family: CHIReq, Name: "CHI-REQ", NeedsAck: true, CreditBased: true,
	})
	r.Register(FamilyInfo{
		Family: CHIData, Name: "CHI-DAT", CreditBased: true,
	})
	r.Register(FamilyInfo{
		Family: CHISnoop, Name: "CHI-SNP", CreditBased: true,
		CarriesSnoops: true,
	})
	r.Register(FamilyInfo{
		Family: CHICredit, Name: "CHI-CREDIT",
	})

	return r
}

// Register adds a family to the registry. Registering a family twice
// replaces the previous description.
func (r *Registry) Register(info FamilyInfo) {
	if info.Family == FamilyUnknown {
		log.Panic("cannot register the unknown protocol family")
	}

	r.lock.Lock()
	r.families[info.Family] = info
	r.lock.Unlock()
}

// Lookup returns the description of a family.
func (r *Registry) Lookup(f Family) (FamilyInfo, bool) {
	r.lock.RLock()
	info, ok := r.families[f]
	r.lock.RUnlock()

	return info, ok
}

// MustLookup returns the description of the payload's family. A payload of
// an unregistered family cannot be interpreted, so MustLookup panics.
func (r *Registry) MustLookup(p *Payload) FamilyInfo {
	info, ok := r.Lookup(p.Family)
	if !ok {
		log.Panicf("unrecognized protocol extension %s on payload %s",
			p.Family, p)
	}

	return info
}

// Families returns the registered families in ascending order.
func (r *Registry) Families() []Family {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]Family, 0, len(r.families))
	for f := range r.families {
		list = append(list, f)
	}

	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })

	return list
}
