package types

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string that never prints or serializes its value. The
// SendGrid API key and database URL are held as SecretString from config load
// until the moment they are handed to a client.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value. Call it only where the secret is
// actually needed (Authorization header, connection string).
func (s SecretString) Unmask() string {
	return string(s)
}
