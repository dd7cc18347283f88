package service

import (
	"context"
	"sync"
)

// StaticAuthenticator satisfies the auth collaborator contract with a
// fixed identity, for deployments where the surrounding system already
// established the session. An empty user id means unauthenticated until
// SetUserID is called.
type StaticAuthenticator struct {
	mu     sync.RWMutex
	userID string
}

func NewStaticAuthenticator(userID string) *StaticAuthenticator {
	return &StaticAuthenticator{userID: userID}
}

func (a *StaticAuthenticator) IsAuthenticated(context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID != ""
}

func (a *StaticAuthenticator) CurrentUserID(context.Context) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID, a.userID != ""
}

// SetUserID installs or clears the identity at runtime.
func (a *StaticAuthenticator) SetUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userID = id
}

// StaticProjectResolver hands out a pre-confirmed project id. Capture does
// not start until one is set.
type StaticProjectResolver struct {
	mu        sync.RWMutex
	projectID string
}

func NewStaticProjectResolver(projectID string) *StaticProjectResolver {
	return &StaticProjectResolver{projectID: projectID}
}

func (r *StaticProjectResolver) ProjectID(context.Context) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projectID, r.projectID != ""
}

func (r *StaticProjectResolver) SetProjectID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projectID = id
}
