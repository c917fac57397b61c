package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString carries the internal API key, DATABASE_URL and the push and
// email sender keys. Printing or marshaling it yields a placeholder, so a
// logged Config or a /health body never exposes a credential.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// IsZero reports whether no credential was configured. Sender keys are
// optional in local and test environments.
func (s SecretString) IsZero() bool {
	return s == ""
}

// Unmask returns the raw credential for the bearer header or the pgx pool.
func (s SecretString) Unmask() string {
	return string(s)
}
