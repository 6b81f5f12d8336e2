package launch

import "github.com/google/uuid"

// offlineNamespace salts offline ids so they never collide with another
// tool's name-derived uuids.
var offlineNamespace = uuid.MustParse("8c7cafc8-3a9d-4b71-9f10-5e2d41c2a6c1")

// Identity is the player profile the launch arguments reference. The core
// never inspects it beyond argument substitution.
type Identity struct {
	Name string
	ID   string
}

// OfflineIdentity derives a stable identity from a player name: the same
// name always yields the same id, so per-player world data survives
// relaunches without an account service.
func OfflineIdentity(name string) Identity {
	return Identity{
		Name: name,
		ID:   uuid.NewSHA1(offlineNamespace, []byte("offline:"+name)).String(),
	}
}
