package auth

import (
	"adoption-chat/domain/chat"
	"sync"
)

// StaticIdentity is a user known from the start.
type StaticIdentity chat.Author

func (s StaticIdentity) Current() (chat.Author, bool) {
	return chat.Author(s), s.ID != ""
}

// DeferredIdentity starts unknown and is resolved once the session is restored.
type DeferredIdentity struct {
	mu     sync.RWMutex
	author chat.Author
	known  bool
}

func NewDeferredIdentity() *DeferredIdentity {
	return &DeferredIdentity{}
}

func (d *DeferredIdentity) Set(author chat.Author) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.author = author
	d.known = author.ID != ""
}

func (d *DeferredIdentity) Current() (chat.Author, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.author, d.known
}

// IdentityFromToken reads the user carried by a token.
func IdentityFromToken(token string) (StaticIdentity, error) {
	claims, err := ReadClaims(token)
	if err != nil {
		return StaticIdentity{}, err
	}
	return StaticIdentity(claims.Author()), nil
}
