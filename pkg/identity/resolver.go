// Package identity resolves numeric owner and group ids to display names.
package identity

import (
	"os/user"
	"strconv"

	"github.com/jingkaihe/whatif/internal/errx"
)

// Resolver maps numeric ids to symbolic names for display. Failures
// propagate upward as partial-description errors; they never abort a
// session.
type Resolver interface {
	LookupUID(uid int) (string, error)
	LookupGID(gid int) (string, error)
}

// OSResolver resolves ids against the operating system's user and group
// databases.
type OSResolver struct{}

func (OSResolver) LookupUID(uid int) (string, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", errx.With(ErrUnknownUser, ": uid=%d: %w", uid, err)
	}
	return u.Username, nil
}

func (OSResolver) LookupGID(gid int) (string, error) {
	g, err := user.LookupGroupId(strconv.Itoa(gid))
	if err != nil {
		return "", errx.With(ErrUnknownGroup, ": gid=%d: %w", gid, err)
	}
	return g.Name, nil
}
