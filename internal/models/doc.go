// Package models defines the domain types shared by the corpus services.
package models

import "time"

// DocMetadata is a lightweight representation returned by list operations.
type DocMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocSummary is the indexed view of one document.
type DocSummary struct {
	Path      string    `json:"path"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Status    string    `json:"status,omitempty"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link represents a directed reference between two documents.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}
