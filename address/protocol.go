package address

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/opd-ai/audiostream/packet"
)

var (
	// ErrUnknownInterface indicates an interface kind outside the known set.
	ErrUnknownInterface = errors.New("unknown interface")

	// ErrUnknownProtocol indicates a protocol outside the known set.
	ErrUnknownProtocol = errors.New("unknown protocol")

	// ErrProtocolMismatch indicates a protocol used on the wrong interface.
	ErrProtocolMismatch = errors.New("protocol not supported on interface")

	// ErrInvalidURI indicates a malformed endpoint URI.
	ErrInvalidURI = errors.New("invalid endpoint uri")
)

// Interface is the kind of stream an endpoint carries within a slot.
type Interface int

const (
	IfaceInvalid Interface = iota
	// IfaceAudioSource carries audio packets.
	IfaceAudioSource
	// IfaceAudioRepair carries FEC repair packets.
	IfaceAudioRepair
)

// String implements fmt.Stringer.
func (i Interface) String() string {
	switch i {
	case IfaceAudioSource:
		return "audiosrc"
	case IfaceAudioRepair:
		return "audiorpr"
	default:
		return "invalid"
	}
}

// Validate returns ErrUnknownInterface for invalid kinds.
func (i Interface) Validate() error {
	if i != IfaceAudioSource && i != IfaceAudioRepair {
		return fmt.Errorf("%w: %d", ErrUnknownInterface, int(i))
	}
	return nil
}

// Protocol is the framing used by an endpoint.
type Protocol int

const (
	ProtoNone Protocol = iota
	// ProtoRTP is bare RTP without FEC.
	ProtoRTP
	// ProtoRTPRS8MSource is RTP with a Reed-Solomon payload ID footer.
	ProtoRTPRS8MSource
	// ProtoRS8MRepair is a Reed-Solomon repair stream.
	ProtoRS8MRepair
	// ProtoRTPLDPCSource is RTP with an LDPC-Staircase payload ID footer.
	ProtoRTPLDPCSource
	// ProtoLDPCRepair is an LDPC-Staircase repair stream.
	ProtoLDPCRepair
)

// ProtocolAttrs describes a protocol.
type ProtocolAttrs struct {
	Protocol  Protocol
	Name      string
	Iface     Interface
	FECScheme packet.FECScheme
}

var protocols = []ProtocolAttrs{
	{Protocol: ProtoRTP, Name: "rtp", Iface: IfaceAudioSource, FECScheme: packet.FECNone},
	{Protocol: ProtoRTPRS8MSource, Name: "rtp+rs8m", Iface: IfaceAudioSource, FECScheme: packet.FECReedSolomonM8},
	{Protocol: ProtoRS8MRepair, Name: "rs8m", Iface: IfaceAudioRepair, FECScheme: packet.FECReedSolomonM8},
	{Protocol: ProtoRTPLDPCSource, Name: "rtp+ldpc", Iface: IfaceAudioSource, FECScheme: packet.FECLDPCStaircase},
	{Protocol: ProtoLDPCRepair, Name: "ldpc", Iface: IfaceAudioRepair, FECScheme: packet.FECLDPCStaircase},
}

// Attrs returns the attributes of a protocol.
func (p Protocol) Attrs() (ProtocolAttrs, bool) {
	for _, a := range protocols {
		if a.Protocol == p {
			return a, true
		}
	}
	return ProtocolAttrs{}, false
}

// String implements fmt.Stringer.
func (p Protocol) String() string {
	if a, ok := p.Attrs(); ok {
		return a.Name
	}
	return "none"
}

// FECScheme returns the FEC scheme of the protocol, or FECNone.
func (p Protocol) FECScheme() packet.FECScheme {
	a, _ := p.Attrs()
	return a.FECScheme
}

// ParseProtocol maps a protocol name such as "rtp+rs8m" to a Protocol.
func ParseProtocol(name string) (Protocol, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range protocols {
		if a.Name == name {
			return a.Protocol, nil
		}
	}
	return ProtoNone, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
}

// ValidateEndpoint checks that proto may be used on iface.
func ValidateEndpoint(iface Interface, proto Protocol) error {
	if err := iface.Validate(); err != nil {
		return err
	}
	a, ok := proto.Attrs()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownProtocol, int(proto))
	}
	if a.Iface != iface {
		return fmt.Errorf("%w: %s on %s", ErrProtocolMismatch, a.Name, iface)
	}
	return nil
}

// EndpointURI is a parsed "proto://host:port" endpoint address.
type EndpointURI struct {
	Protocol Protocol
	Host     string
	Port     string
}

// Iface returns the interface kind implied by the protocol.
func (u EndpointURI) Iface() Interface {
	a, _ := u.Protocol.Attrs()
	return a.Iface
}

// HostPort returns the "host:port" part of the URI.
func (u EndpointURI) HostPort() string {
	return net.JoinHostPort(u.Host, u.Port)
}

// String implements fmt.Stringer.
func (u EndpointURI) String() string {
	return u.Protocol.String() + "://" + u.HostPort()
}

// ParseEndpointURI parses an endpoint URI such as "rs8m://0.0.0.0:10002".
func ParseEndpointURI(s string) (EndpointURI, error) {
	u, err := url.Parse(s)
	if err != nil {
		return EndpointURI{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	proto, err := ParseProtocol(u.Scheme)
	if err != nil {
		return EndpointURI{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		return EndpointURI{}, fmt.Errorf("%w: missing port in %q", ErrInvalidURI, s)
	}
	if u.Path != "" && u.Path != "/" {
		return EndpointURI{}, fmt.Errorf("%w: unexpected path %q", ErrInvalidURI, u.Path)
	}
	return EndpointURI{Protocol: proto, Host: host, Port: port}, nil
}
