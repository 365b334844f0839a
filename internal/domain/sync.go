package domain

import "time"

// SyncState is the process-wide sync singleton.
type SyncState struct {
	SyncInProgress bool       `json:"syncInProgress"`
	LastSyncAt     *time.Time `json:"lastSyncAt"`
	LastHistoryID  *string    `json:"lastHistoryId"`
	TotalSynced    int64      `json:"totalSynced"`
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	TotalProcessed    int `json:"totalProcessed"`
	AutoImported      int `json:"autoImported"`
	PendingReview     int `json:"pendingReview"`
	SkippedDuplicates int `json:"skippedDuplicates"`
	Errors            int `json:"errors"`
}
