package domain

import "time"

// OutputRecord describes one file written by a pipeline task.
type OutputRecord struct {
	// Path is relative to the project root, slash separated.
	Path      string    `json:"path"`
	Task      string    `json:"task"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	WrittenAt time.Time `json:"written_at"`
}
