package model

import "time"

// SyncStatus is the three-state sync lifecycle of a locally created
// attendance record.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// AttendanceLog is one check-in/check-out record. Records are created at
// check-in, mutated at check-out and at each sync attempt, and never
// deleted; they are the audit trail.
//
// A record with a nil CheckOutTime is "open": at most one open record may
// exist per user at a time.
type AttendanceLog struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"localId"`
	RemoteLogID  string     `gorm:"uniqueIndex;size:36;not null" json:"remoteLogId"`
	UserID       string     `gorm:"index;size:64;not null" json:"userId"`
	SiteID       int64      `gorm:"index;not null" json:"siteId"`
	SiteName     string     `gorm:"size:128;not null" json:"siteName"`
	CheckInTime  time.Time  `gorm:"not null" json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime,omitempty"`
	SyncStatus   SyncStatus `gorm:"index;size:16;not null" json:"syncStatus"`
	CreatedAt    time.Time  `json:"-"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Open reports whether the record's session is still open.
func (r AttendanceLog) Open() bool {
	return r.CheckOutTime == nil
}
