package config

// Masked replaces secret values in Sanitize output. It matches what the
// logger prints for redacted attributes.
const Masked = "***REDACTED***"

// Sanitize returns a copy of cfg safe to log: every non-empty secret is
// replaced by Masked, so neither its content nor its length leaks.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	for _, secret := range []*string{
		&out.Storage.EncryptionKey,
		&out.Security.RequirePass,
	} {
		if *secret != "" {
			*secret = Masked
		}
	}
	return &out
}
