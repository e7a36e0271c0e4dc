// Package uidmap resolves numeric UIDs to user names via the system user
// database.
package uidmap

import (
	"fmt"
	"os/user"
	"strconv"
)

// Resolver looks up user names for UIDs.
type Resolver struct{}

// NewResolver creates a resolver backed by the system user database.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve maps each UID to its user name. UIDs with no database entry
// are absent from the result; callers substitute Placeholder for those.
func (r *Resolver) Resolve(uids []uint32) (map[uint32]string, error) {
	names := make(map[uint32]string, len(uids))
	for _, uid := range uids {
		u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
		if err != nil {
			continue
		}
		name := u.Username
		if name == "" {
			name = u.Name
		}
		if name != "" {
			names[uid] = name
		}
	}
	return names, nil
}

// Placeholder is the fallback name for a UID that could not be resolved.
func Placeholder(uid uint32) string {
	return fmt.Sprintf("uid:%d", uid)
}
