package utils

const maskedSecret = "*****"

// MaskSecret hides a credential for logging. Keys long enough to carry a
// recognisable prefix (AKIA..., ASIA...) keep their first four characters.
// An empty secret stays empty so unset credentials remain visible.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) < 12:
		return maskedSecret
	default:
		return s[:4] + maskedSecret
	}
}
