package federated

import "strings"

// RelayDescriptor classifies a federated email address. Relay addresses are
// provider-minted forwards; they are not stable enough to key account-linking
// decisions on.
type RelayDescriptor struct {
	IsRelay     bool
	RelayDomain string
	LocalPart   string
}

// DetectRelay checks the email's domain against the fixed relay-domain set.
// Matching is case-insensitive and exact on the domain.
func DetectRelay(email string, relayDomains []string) RelayDescriptor {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return RelayDescriptor{}
	}

	localPart := email[:at]
	domain := strings.ToLower(email[at+1:])
	for _, relay := range relayDomains {
		if domain == strings.ToLower(relay) {
			return RelayDescriptor{IsRelay: true, RelayDomain: domain, LocalPart: localPart}
		}
	}
	return RelayDescriptor{LocalPart: localPart}
}
