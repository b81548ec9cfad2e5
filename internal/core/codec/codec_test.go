package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rillcall/internal/core/domain"
	apperrors "rillcall/pkg/errors"
)

const testSDP = "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

var alice = domain.ParticipantID{Username: "alice", ClientID: "web-1"}

func TestTopic(t *testing.T) {
	assert.Equal(t, "user/alice/client/web-1/webrtc/message", Topic("", alice))
	assert.Equal(t, "user/alice/client/web-1/calls", Topic("calls", alice))
}

func TestEncode_MergesClient(t *testing.T) {
	mid := "0"
	idx := uint16(1)
	proxy := domain.ParticipantID{Username: "router", ClientID: "r-1"}

	tests := []struct {
		name string
		msg  domain.SignalMessage
		want map[string]interface{}
	}{
		{
			name: "call with proxy",
			msg:  domain.NewCallMessage(&proxy),
			want: map[string]interface{}{
				"type":   "call",
				"client": map[string]interface{}{"username": "alice", "client_id": "web-1"},
				"proxy":  map[string]interface{}{"username": "router", "client_id": "r-1"},
			},
		},
		{
			name: "accepted without reroute keeps the flag",
			msg:  domain.NewAcceptedMessage(false),
			want: map[string]interface{}{
				"type":    "accepted",
				"client":  map[string]interface{}{"username": "alice", "client_id": "web-1"},
				"reroute": false,
			},
		},
		{
			name: "answer",
			msg:  domain.NewDescriptionMessage(domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: testSDP}),
			want: map[string]interface{}{
				"type":   "answer",
				"client": map[string]interface{}{"username": "alice", "client_id": "web-1"},
				"sdp":    testSDP,
			},
		},
		{
			name: "candidate",
			msg:  domain.NewCandidateMessage(domain.ICECandidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx}),
			want: map[string]interface{}{
				"type":      "candidate",
				"client":    map[string]interface{}{"username": "alice", "client_id": "web-1"},
				"candidate": "candidate:1 1 udp 1 10.0.0.1 5000 typ host",
				"id":        "0",
				"label":     float64(1),
			},
		},
		{
			name: "bye",
			msg:  domain.NewControlMessage(domain.MessageBye),
			want: map[string]interface{}{
				"type":   "bye",
				"client": map[string]interface{}{"username": "alice", "client_id": "web-1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.msg.From(alice))
			require.NoError(t, err)

			var got map[string]interface{}
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(domain.NewControlMessage(domain.MessageBye))
	assert.True(t, errors.Is(err, domain.ErrMissingField), "unstamped message")

	_, err = Encode(domain.SignalMessage{Type: "hello", Client: alice})
	assert.True(t, errors.Is(err, domain.ErrUnknownMessageType))

	_, err = Encode(domain.SignalMessage{Type: domain.MessageOffer, Client: alice})
	assert.True(t, errors.Is(err, domain.ErrMissingField))
}

func TestDecode_Valid(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"call","client":{"username":"bob","client_id":"b1"},"proxy":{"username":"router","client_id":"r-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.MessageCall, msg.Type)
	assert.Equal(t, domain.ParticipantID{Username: "bob", ClientID: "b1"}, msg.Client)
	require.NotNil(t, msg.Proxy)
	assert.Equal(t, "router", msg.Proxy.Username)

	msg, err = Decode([]byte(`{"type":"accepted","client":{"username":"bob","client_id":"b1"},"reroute":true}`))
	require.NoError(t, err)
	assert.True(t, msg.Reroute)

	msg, err = Decode([]byte(`{"type":"accepted","client":{"username":"bob","client_id":"b1"}}`))
	require.NoError(t, err)
	assert.False(t, msg.Reroute)

	msg, err = Decode([]byte(`{"type":"candidate","client":{"username":"bob","client_id":"b1"},"label":0,"id":"audio","candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Candidate)
	require.NotNil(t, msg.Candidate.SDPMLineIndex)
	assert.Equal(t, uint16(0), *msg.Candidate.SDPMLineIndex)
	assert.Equal(t, "audio", *msg.Candidate.SDPMid)
}

func TestDecode_RoundTripDescription(t *testing.T) {
	out := domain.NewDescriptionMessage(domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: testSDP}).From(alice)
	payload, err := Encode(out)
	require.NoError(t, err)

	in, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, out, in)
}

func TestDecode_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		sentinel error
	}{
		{"not json", `{"type":`, domain.ErrMalformedMessage},
		{"array", `[1,2]`, domain.ErrMalformedMessage},
		{"missing type", `{"client":{"username":"bob","client_id":"b1"}}`, domain.ErrMissingField},
		{"unknown type", `{"type":"ping","client":{"username":"bob","client_id":"b1"}}`, domain.ErrUnknownMessageType},
		{"missing client", `{"type":"bye"}`, domain.ErrMissingField},
		{"bad client", `{"type":"bye","client":{"username":"bob smith","client_id":"b1"}}`, domain.ErrMalformedMessage},
		{"bad proxy", `{"type":"call","client":{"username":"bob","client_id":"b1"},"proxy":{"username":"","client_id":""}}`, domain.ErrMalformedMessage},
		{"offer without sdp", `{"type":"offer","client":{"username":"bob","client_id":"b1"}}`, domain.ErrMissingField},
		{"offer with garbage sdp", `{"type":"offer","client":{"username":"bob","client_id":"b1"},"sdp":"hello"}`, domain.ErrMalformedMessage},
		{"candidate without value", `{"type":"candidate","client":{"username":"bob","client_id":"b1"},"label":0}`, domain.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeProtocol))
		})
	}
}
