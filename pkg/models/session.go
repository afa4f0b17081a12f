package models

import "time"

// StagingSession is an isolated per-user, per-attempt filesystem
// workspace. All intermediate files of one workflow attempt live under
// RootPath; no two concurrent sessions share a RootPath.
type StagingSession struct {
	ID        string    `json:"id"`
	RootPath  string    `json:"root_path"`
	CreatedAt time.Time `json:"created_at"`
}
