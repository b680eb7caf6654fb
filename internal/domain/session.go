// Package domain contains entity without logic, just meta-data
package domain

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
)
