package protocol

// Family tells which protocol variant a payload belongs to. It replaces the
// extension objects that a payload would otherwise have to be searched for.
type Family int

// Known protocol families. The zero value is not a valid family.
const (
	FamilyUnknown Family = iota
	AXI3
	AXI4
	ACE
	ACELite
	CHIReq
	CHIData
	CHISnoop
	CHICredit
)

func (f Family) String() string {
	switch f {
	case AXI3:
		return "AXI3"
	case AXI4:
		return "AXI4"
	case ACE:
		return "ACE"
	case ACELite:
		return "ACE-Lite"
	case CHIReq:
		return "CHI-REQ"
	case CHIData:
		return "CHI-DAT"
	case CHISnoop:
		return "CHI-SNP"
	case CHICredit:
		return "CHI-CREDIT"
	}

	return "UNKNOWN_FAMILY"
}
