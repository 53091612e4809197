package models

import "time"

// DefaultUsername is assigned until name inference or an explicit rename
// provides something better.
const DefaultUsername = "Guest"

// User is one visitor identity, keyed by observed network address.
// Created on first contact, never deleted by normal traffic.
type User struct {
	UserID        string    `bson:"userId" json:"userId"`
	Username      string    `bson:"username" json:"username"`
	IPAddress     string    `bson:"ipAddress" json:"ipAddress"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	LastActiveAt  time.Time `bson:"lastActiveAt" json:"lastActiveAt"`
	TotalSessions int       `bson:"totalSessions" json:"totalSessions"`
}
