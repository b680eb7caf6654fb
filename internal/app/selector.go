package app

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mkurev/avagate/internal/core"
)

// Selector picks the avatar for a session with no explicit assignment.
// It is a routing concern, not part of the connection manager.
type Selector interface {
	Pick(sid core.SessionID) string
}

// StaticSelector always picks the same avatar.
type StaticSelector struct {
	AvatarID string
}

func (s StaticSelector) Pick(core.SessionID) string { return s.AvatarID }

// BucketSelector deterministically splits sessions between two avatars.
// The bucket is derived from sha256(testID:sid) so a session always
// lands on the same side of the experiment.
type BucketSelector struct {
	TestID  string
	AvatarA string
	AvatarB string
	SplitA  int // percent of traffic routed to AvatarA, 0..100
}

func (s BucketSelector) Pick(sid core.SessionID) string {
	sum := sha256.Sum256([]byte(s.TestID + ":" + string(sid)))
	bucket := int(binary.BigEndian.Uint32(sum[:4]) % 100)
	if bucket < s.SplitA {
		return s.AvatarA
	}
	return s.AvatarB
}
