// Package models declares the application's entities. Each entity is a plain
// struct mapped with `orm` tags; its Schema is built once at package
// initialisation, so a malformed declaration stops the program from starting.
package models

import (
	"time"

	"github.com/google/uuid"
)

// NextID returns a new primary key. Version 7 UUIDs sort by creation time.
func NextID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Now returns the current time as fractional unix seconds, the format every
// created_at column stores.
func Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
