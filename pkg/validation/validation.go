package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// UsernameRegex allows characters that are safe inside a topic segment.
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

	// ClientIDRegex validates client id format
	ClientIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
)

// ValidateUsername validates the username half of a participant id.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > 150 {
		return fmt.Errorf("username is too long (max 150 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, ., @, - allowed)")
	}
	return nil
}

// ValidateClientID validates the client id half of a participant id.
func ValidateClientID(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("client_id is required")
	}
	if len(clientID) > 100 {
		return fmt.Errorf("client_id is too long (max 100 characters)")
	}
	if !ClientIDRegex.MatchString(clientID) {
		return fmt.Errorf("invalid client_id format")
	}
	return nil
}

// ValidateParticipant validates both halves of a participant id.
func ValidateParticipant(username, clientID string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	return ValidateClientID(clientID)
}

// ValidateSDP checks the mandatory session-level lines of an SDP document.
func ValidateSDP(sdp string) error {
	if sdp == "" {
		return fmt.Errorf("SDP cannot be empty")
	}
	if !strings.HasPrefix(sdp, "v=") {
		return fmt.Errorf("invalid SDP format: must start with 'v='")
	}
	for _, field := range []string{"o=", "s=", "t="} {
		if !strings.Contains(sdp, field) {
			return fmt.Errorf("invalid SDP format: missing required field '%s'", field)
		}
	}
	return nil
}

// ValidateCandidate validates an ICE candidate attribute value.
func ValidateCandidate(candidate string) error {
	if strings.TrimSpace(candidate) == "" {
		return fmt.Errorf("ICE candidate is required")
	}
	if !utf8.ValidString(candidate) {
		return fmt.Errorf("ICE candidate contains invalid characters")
	}
	if len(candidate) > 1024 {
		return fmt.Errorf("ICE candidate is too long (max 1024 characters)")
	}
	return nil
}

// ValidateICEServerURL validates a STUN/TURN server URL.
func ValidateICEServerURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("ICE server URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid ICE server URL: %w", err)
	}
	switch u.Scheme {
	case "stun", "stuns", "turn", "turns":
	default:
		return fmt.Errorf("invalid ICE server scheme %q (must be stun, stuns, turn or turns)", u.Scheme)
	}
	if u.Opaque == "" && u.Host == "" {
		return fmt.Errorf("ICE server URL must have a host")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}
