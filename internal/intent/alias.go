package intent

import "strings"

// aliases maps well-known contact names to canonical phone numbers. Unresolved
// names pass through unchanged and fail phone validation downstream, which
// yields a normal invalid-recipient prompt instead of an error.
var aliases = map[string]string{
	"alice":   "+254712345678",
	"bob":     "+254787654321",
	"charlie": "+254798765432",
}

// ResolveAlias converts a contact name to its phone number when known.
func ResolveAlias(recipient string) string {
	if phone, ok := aliases[strings.ToLower(strings.TrimSpace(recipient))]; ok {
		return phone
	}
	return recipient
}
