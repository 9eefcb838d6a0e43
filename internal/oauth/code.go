package oauth

// MaxCodeLength bounds the untrusted authorization code before it is used
const MaxCodeLength = 512

// Code is an authorization code that passed ValidateCode
type Code string

// ValidateCode checks the raw query value before any network call. Only
// ASCII letters and digits are accepted, which keeps the value inert inside
// the form-encoded token request.
func ValidateCode(raw string) (Code, error) {
	if raw == "" {
		return "", invalidCode("code is missing")
	}
	if len(raw) > MaxCodeLength {
		return "", invalidCode("code exceeds %d bytes", MaxCodeLength)
	}
	for i := 0; i < len(raw); i++ {
		if !isAlphanumeric(raw[i]) {
			return "", invalidCode("code contains a non-alphanumeric character at offset %d", i)
		}
	}
	return Code(raw), nil
}

func isAlphanumeric(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
