// Package chat implements the real-time delivery core: canonical room
// identifiers, the connection registry that tracks each user's live event
// channel, and the fan-out that pushes newly persisted messages to the
// participants of a room.
package chat

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedRoomID is returned by ParseParticipants when a room id is not
// two "_"-joined integers in canonical order.
var ErrMalformedRoomID = errors.New("chat: malformed room id")

// CanonicalRoomID derives the room id for a pair of users. The smaller id
// always comes first, so both argument orders yield the same room. Callers
// must not pass equal ids; a room with oneself is rejected at the API layer.
func CanonicalRoomID(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return strconv.FormatInt(a, 10) + "_" + strconv.FormatInt(b, 10)
}

// ParseParticipants recovers the participant pair from a canonical room id.
// The id format is load-bearing: fan-out resolves recipients by splitting it,
// so anything that is not exactly two "_"-joined non-negative integers in
// ascending order fails with ErrMalformedRoomID. The input may originate from
// a request path, so no parse failure ever panics.
func ParseParticipants(roomID string) (int64, int64, error) {
	left, right, found := strings.Cut(roomID, "_")
	if !found {
		return 0, 0, ErrMalformedRoomID
	}
	a, err := strconv.ParseInt(left, 10, 64)
	if err != nil || a < 0 {
		return 0, 0, ErrMalformedRoomID
	}
	b, err := strconv.ParseInt(right, 10, 64)
	if err != nil || b < 0 {
		return 0, 0, ErrMalformedRoomID
	}
	// The store only ever contains ascending ids; anything else is forged.
	if a > b {
		return 0, 0, ErrMalformedRoomID
	}
	return a, b, nil
}
