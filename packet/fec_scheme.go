package packet

// FECScheme identifies the erasure code protecting a stream.
type FECScheme int

const (
	// FECNone means the stream carries no FEC.
	FECNone FECScheme = iota
	// FECReedSolomonM8 is Reed-Solomon over GF(2^8).
	FECReedSolomonM8
	// FECLDPCStaircase is LDPC-Staircase.
	FECLDPCStaircase
)

// String implements fmt.Stringer.
func (s FECScheme) String() string {
	switch s {
	case FECNone:
		return "none"
	case FECReedSolomonM8:
		return "rs8m"
	case FECLDPCStaircase:
		return "ldpc"
	default:
		return "unknown"
	}
}
