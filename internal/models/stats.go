// internal/models/stats.go
package models

type DerivedStats struct {
	MatchesTotal          int     `json:"matchesTotal"`
	SwipeLikesTotal       int     `json:"swipeLikesTotal"`
	SwipePassesTotal      int     `json:"swipePassesTotal"`
	MatchRate             float64 `json:"matchRate"`
	DaysInPeriod          int     `json:"daysInPeriod"`
	AppOpensTotal         int     `json:"appOpensTotal"`
	SuperLikesTotal       int     `json:"superLikesTotal"`
	MessagesSentTotal     int     `json:"messagesSentTotal"`
	MessagesReceivedTotal int     `json:"messagesReceivedTotal"`
	FirstDay              string  `json:"firstDay,omitempty"`
	LastDay               string  `json:"lastDay,omitempty"`
}
