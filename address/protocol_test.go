package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audiostream/packet"
)

func TestProtocolAttrs(t *testing.T) {
	tests := []struct {
		proto  Protocol
		name   string
		iface  Interface
		scheme packet.FECScheme
	}{
		{ProtoRTP, "rtp", IfaceAudioSource, packet.FECNone},
		{ProtoRTPRS8MSource, "rtp+rs8m", IfaceAudioSource, packet.FECReedSolomonM8},
		{ProtoRS8MRepair, "rs8m", IfaceAudioRepair, packet.FECReedSolomonM8},
		{ProtoRTPLDPCSource, "rtp+ldpc", IfaceAudioSource, packet.FECLDPCStaircase},
		{ProtoLDPCRepair, "ldpc", IfaceAudioRepair, packet.FECLDPCStaircase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := tt.proto.Attrs()
			require.True(t, ok)
			assert.Equal(t, tt.name, a.Name)
			assert.Equal(t, tt.iface, a.Iface)
			assert.Equal(t, tt.scheme, tt.proto.FECScheme())
			assert.Equal(t, tt.name, tt.proto.String())

			parsed, err := ParseProtocol(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.proto, parsed)

			assert.NoError(t, ValidateEndpoint(tt.iface, tt.proto))
		})
	}

	_, ok := ProtoNone.Attrs()
	assert.False(t, ok)
}

func TestValidateEndpoint(t *testing.T) {
	assert.ErrorIs(t, ValidateEndpoint(IfaceAudioRepair, ProtoRTP), ErrProtocolMismatch)
	assert.ErrorIs(t, ValidateEndpoint(IfaceAudioSource, ProtoRS8MRepair), ErrProtocolMismatch)
	assert.ErrorIs(t, ValidateEndpoint(IfaceInvalid, ProtoRTP), ErrUnknownInterface)
	assert.ErrorIs(t, ValidateEndpoint(IfaceAudioSource, Protocol(42)), ErrUnknownProtocol)
}

func TestParseEndpointURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    EndpointURI
		wantErr bool
	}{
		{
			name: "rtp",
			uri:  "rtp://127.0.0.1:10001",
			want: EndpointURI{Protocol: ProtoRTP, Host: "127.0.0.1", Port: "10001"},
		},
		{
			name: "repair_any_host",
			uri:  "rs8m://0.0.0.0:10002",
			want: EndpointURI{Protocol: ProtoRS8MRepair, Host: "0.0.0.0", Port: "10002"},
		},
		{
			name: "ipv6",
			uri:  "rtp+rs8m://[::1]:10001",
			want: EndpointURI{Protocol: ProtoRTPRS8MSource, Host: "::1", Port: "10001"},
		},
		{name: "unknown_scheme", uri: "http://localhost:80", wantErr: true},
		{name: "missing_port", uri: "rtp://localhost", wantErr: true},
		{name: "path", uri: "rtp://localhost:1/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpointURI(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	u, err := ParseEndpointURI("rs8m://[::1]:5")
	require.NoError(t, err)
	assert.Equal(t, IfaceAudioRepair, u.Iface())
	assert.Equal(t, "rs8m://[::1]:5", u.String())
}
