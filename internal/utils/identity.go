package utils

import (
	"crypto/rand"
	"math/big"
)

const roomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RoomIDLength is the length of client-generated room identifiers.
const RoomIDLength = 6

// GenerateRoomID returns a 6-character uppercase alphanumeric room id.
// Collisions are accepted as negligible; there is no uniqueness retry.
func GenerateRoomID() string {
	b := make([]byte, RoomIDLength)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	for i := range b {
		b[i] = roomIDAlphabet[int(b[i])%len(roomIDAlphabet)]
	}
	return string(b)
}

var userColors = []string{
	"#EF4444", // red
	"#F97316", // orange
	"#EAB308", // yellow
	"#22C55E", // green
	"#14B8A6", // teal
	"#3B82F6", // blue
	"#8B5CF6", // violet
	"#EC4899", // pink
}

var nameAdjectives = []string{
	"Swift", "Bright", "Clever", "Bold", "Quick", "Sharp", "Calm", "Wise",
}

var nameNouns = []string{
	"Fox", "Eagle", "Wolf", "Bear", "Hawk", "Lion", "Tiger", "Owl",
}

// GenerateUserColor picks a cursor color from the shared palette.
func GenerateUserColor() string {
	return userColors[randIndex(len(userColors))]
}

// GenerateAnonymousName returns a throwaway display name such as "Swift Fox".
func GenerateAnonymousName() string {
	return nameAdjectives[randIndex(len(nameAdjectives))] + " " + nameNouns[randIndex(len(nameNouns))]
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
