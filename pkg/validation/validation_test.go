package validation

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid username", "dispatcher1", false},
		{"valid with dot and at", "jane.doe@ems", false},
		{"valid with dash", "unit-12", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("a", 151), true},
		{"slash breaks topic", "user/name", true},
		{"wildcard plus", "user+1", true},
		{"wildcard hash", "user#1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateClientID(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		wantErr  bool
	}{
		{"valid client id", "client_42", false},
		{"uuid", "0f8fad5b-d9cb-469f-a165-70867728950e", false},
		{"empty", "", true},
		{"too long", strings.Repeat("c", 101), true},
		{"space", "client 1", true},
		{"slash", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClientID(tt.clientID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateClientID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateParticipant(t *testing.T) {
	if err := ValidateParticipant("alice", "c1"); err != nil {
		t.Errorf("expected valid participant, got %v", err)
	}
	if err := ValidateParticipant("", "c1"); err == nil {
		t.Error("expected error for missing username")
	}
	if err := ValidateParticipant("alice", ""); err == nil {
		t.Error("expected error for missing client id")
	}
}

func TestValidateSDP(t *testing.T) {
	tests := []struct {
		name    string
		sdp     string
		wantErr bool
	}{
		{"valid", "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n", false},
		{"empty", "", true},
		{"wrong prefix", "o=- 1 2 IN IP4 127.0.0.1\r\nv=0\r\n", true},
		{"missing origin", "v=0\r\ns=-\r\nt=0 0\r\n", true},
		{"missing timing", "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSDP(tt.sdp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSDP() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCandidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		wantErr   bool
	}{
		{"host candidate", "candidate:1 1 udp 2130706431 10.0.0.1 50000 typ host", false},
		{"empty", "", true},
		{"too long", strings.Repeat("x", 1025), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCandidate(tt.candidate)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCandidate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateICEServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"stun", "stun:stun.l.google.com:19302", false},
		{"turn", "turn:turn.example.com:3478", false},
		{"turns", "turns:turn.example.com:5349", false},
		{"empty", "", true},
		{"http scheme", "http://example.com", true},
		{"no host", "stun:", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateICEServerURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateICEServerURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
