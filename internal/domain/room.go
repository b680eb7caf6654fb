package domain

type RoomID string

// GlobalRoom is the room every connected session belongs to.
// Presence updates are fanned out through it.
const GlobalRoom RoomID = "global"
