package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goQR/password"
)

var errBadCredentials = errors.New("invalid username or password")

// userDirectory is the in-memory device account store. Plain passwords from
// the environment are hashed on load.
type userDirectory struct {
	hasher *password.Argon2

	mu     sync.RWMutex
	hashes map[string]string
}

func newUserDirectory(hasher *password.Argon2, users map[string]string) (*userDirectory, error) {
	d := &userDirectory{
		hasher: hasher,
		hashes: make(map[string]string, len(users)),
	}

	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := d.put(name, users[name]); err != nil {
			return nil, fmt.Errorf("user %q: %w", name, err)
		}
	}
	return d, nil
}

func (d *userDirectory) put(name, secret string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("empty user name")
	}

	hash := secret
	if !strings.HasPrefix(secret, "$argon2id$") {
		var err error
		if hash, err = d.hasher.Hash(secret); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.hashes[name] = hash
	d.mu.Unlock()
	return nil
}

// Authenticate checks a password and rehashes it when the stored hash uses
// weaker parameters than the current ones.
func (d *userDirectory) Authenticate(name, pw string) error {
	d.mu.RLock()
	hash, ok := d.hashes[name]
	d.mu.RUnlock()
	if !ok {
		return errBadCredentials
	}

	if err := d.hasher.Compare(pw, hash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return errBadCredentials
		}
		return err
	}

	if d.hasher.NeedsUpgrade(hash) {
		_ = d.put(name, pw)
	}
	return nil
}

func (d *userDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hashes)
}
