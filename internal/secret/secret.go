// Package secret provides the key material used by every keyed hash in the
// ledger and scheduler. The three secrets are deliberately distinct: the
// ledger secret keys balance-record integrity hashes, the request secret keys
// withdrawal request hashes, and the verification secret keys the separate
// security-verification hashes. They are not interchangeable.
//
// Rotation semantics: a Provider is immutable once constructed. Rotating a
// secret means restarting the service with new environment values, and every
// record hashed under the old value becomes unverifiable. That is an
// operational decision to be taken explicitly, not a side effect.
package secret

type Provider interface {
	LedgerSecret() []byte
	RequestSecret() []byte
	VerificationSecret() []byte
}

type envProvider struct {
	ledger       []byte
	request      []byte
	verification []byte
}

func NewProvider(ledgerSecret, requestSecret, verificationSecret string) Provider {
	return &envProvider{
		ledger:       []byte(ledgerSecret),
		request:      []byte(requestSecret),
		verification: []byte(verificationSecret),
	}
}

func (p *envProvider) LedgerSecret() []byte {
	return p.ledger
}

func (p *envProvider) RequestSecret() []byte {
	return p.request
}

func (p *envProvider) VerificationSecret() []byte {
	return p.verification
}
