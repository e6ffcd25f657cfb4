package schema

import "github.com/mesh-intelligence/shelf/pkg/types"

// IsAdmin allows sessions whose user carries the admin flag.
func IsAdmin(session *types.Session) bool {
	return session != nil && session.Data != nil && session.Data.IsAdmin
}

// IsLogin allows any authenticated session.
func IsLogin(session *types.Session) bool {
	return session != nil && session.Data != nil
}
