package domain

// PolicyInput is the document handed to the registration policy. Fields are
// drawn from the unverified credential; the policy decides admission, not
// authenticity.
type PolicyInput struct {
	Issuer     string          `json:"issuer"`
	Scope      string          `json:"scope"`
	Source     string          `json:"source"`
	Frameworks []string        `json:"frameworks,omitempty"`
	ProofOnly  bool            `json:"proof_only"`
	Summary    EvidenceSummary `json:"summary"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

// PolicyEvaluation carries the decision together with the identity of the
// bundle that produced it, so decisions can be replayed against a pinned
// bundle hash.
type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
