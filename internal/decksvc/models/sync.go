package models

import "time"

type SyncReport struct {
	RunID        string     `json:"runId" bson:"run_id"`
	Trigger      string     `json:"trigger" bson:"trigger"` // schedule, api, cli
	Filter       string     `json:"filter" bson:"filter"`
	Mode         string     `json:"mode" bson:"mode"`
	MaxPages     int        `json:"maxPages" bson:"max_pages"`
	PagesFetched int        `json:"pagesFetched" bson:"pages_fetched"`
	PagesFailed  int        `json:"pagesFailed" bson:"pages_failed"`
	FailedPages  []int      `json:"failedPages" bson:"failed_pages"`
	Synced       int        `json:"synced" bson:"synced"`
	Failed       int        `json:"failed" bson:"failed"`
	StartedAt    time.Time  `json:"startedAt" bson:"started_at"`
	FinishedAt   time.Time  `json:"finishedAt" bson:"finished_at"`
	ExpiresAt    *time.Time `json:"-" bson:"expires_at,omitempty"`
}

type EmbedReport struct {
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}
