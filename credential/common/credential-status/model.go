package credentialstatus

// StatusListCredential is the credential document published at a
// statusListCredential URL. Only the members the status check needs are
// typed; issuers are free to carry more.
type StatusListCredential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	ValidFrom         string            `json:"validFrom,omitempty"`
	ValidUntil        string            `json:"validUntil,omitempty"`
	CredentialSubject StatusListSubject `json:"credentialSubject"`
}

// StatusListSubject carries the compressed bitstring and the purpose its
// bits encode.
type StatusListSubject struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	StatusPurpose string `json:"statusPurpose"`
	EncodedList   string `json:"encodedList"`
}

// Entry is the credentialStatus member of a credential: a pointer into a
// published status list.
type Entry struct {
	ID                   string
	Type                 string
	StatusPurpose        string
	StatusListIndex      int
	StatusListCredential string
}
