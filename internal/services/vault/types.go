package vault

const (
	CiphertextVersion = "v1"
	redacted          = "[REDACTED]"
)

// Secret holds decrypted key material. It never prints its value.
type Secret string

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Reveal returns the raw value for handing to a provider SDK.
func (s Secret) Reveal() string {
	return string(s)
}

// Credentials are the decrypted keys of one PSP, alive for one request.
type Credentials struct {
	PublicKey string
	SecretKey Secret
}
