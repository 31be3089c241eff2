package model

// Proof purposes carried by embedded proofs.
const (
	ProofPurposeAssertionMethod = "assertionMethod"
	ProofPurposeAuthentication  = "authentication"
)

// Proof represents an embedded data-integrity proof.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	Cryptosuite        string `json:"cryptosuite,omitempty"`
	ProofValue         string `json:"proofValue,omitempty"`
}
