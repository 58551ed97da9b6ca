package auth

import "sort"

// Providers is the set of sign-in methods enabled for this deployment.
// OAuth providers are only registered when their client ID and secret are
// configured; Credentials is nil unless a credential account is set up.
type Providers struct {
	OAuth       map[string]OAuthProvider
	Credentials *CredentialsProvider
}

// NewProviders registers the given OAuth providers by Name. Nil entries are
// skipped so callers can pass optional providers unconditionally.
func NewProviders(creds *CredentialsProvider, oauth ...OAuthProvider) *Providers {
	p := &Providers{OAuth: make(map[string]OAuthProvider), Credentials: creds}
	for _, o := range oauth {
		if o != nil {
			p.OAuth[o.Name()] = o
		}
	}
	return p
}

// Lookup returns the OAuth provider registered under name.
func (p *Providers) Lookup(name string) (OAuthProvider, bool) {
	o, ok := p.OAuth[name]
	return o, ok
}

// Names lists every enabled provider key, OAuth ones sorted, credentials last.
func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.OAuth)+1)
	for name := range p.OAuth {
		names = append(names, name)
	}
	sort.Strings(names)
	if p.Credentials != nil {
		names = append(names, p.Credentials.Name())
	}
	return names
}
