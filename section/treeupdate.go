package section

// TreeUpdate is the wire-level payload carrying a signed SAP plus the
// proof chain bridging it to a key the recipient already trusts (spec §6
// SectionTreeUpdate).
type TreeUpdate struct {
	SignedSAP  SignedSAP
	ProofChain *Dag
}
