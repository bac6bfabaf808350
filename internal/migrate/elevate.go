package migrate

import (
	"context"
	"sync"

	"github.com/danielolaszy/bz2gl/internal/backend"
)

// elevator grants temporary admin rights to identities that submit content
// as themselves. Grants are counted per identity so that concurrent records
// acting as the same user share one grant.
type elevator struct {
	client  backend.Client
	isAdmin func(identity string) bool
	dryRun  bool

	mu     sync.Mutex
	grants map[string]int
}

func newElevator(client backend.Client, isAdmin func(string) bool, dryRun bool) *elevator {
	return &elevator{
		client:  client,
		isAdmin: isAdmin,
		dryRun:  dryRun,
		grants:  make(map[string]int),
	}
}

func (el *elevator) needed(identity string) bool {
	return identity != "" && !el.isAdmin(identity)
}

func (el *elevator) acquire(ctx context.Context, identity string) error {
	if !el.needed(identity) {
		return nil
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.grants[identity] == 0 {
		if err := el.set(ctx, identity, true); err != nil {
			return err
		}
	}
	el.grants[identity]++
	return nil
}

func (el *elevator) release(ctx context.Context, identity string) error {
	if !el.needed(identity) {
		return nil
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.grants[identity] == 0 {
		return nil
	}
	el.grants[identity]--
	if el.grants[identity] > 0 {
		return nil
	}
	delete(el.grants, identity)
	return el.set(ctx, identity, false)
}

func (el *elevator) set(ctx context.Context, identity string, admin bool) error {
	req := backend.NewRequest(backend.AdminPayload{Identity: identity, Admin: admin}, "", el.dryRun)
	_, err := el.client.Submit(ctx, req)
	return err
}
