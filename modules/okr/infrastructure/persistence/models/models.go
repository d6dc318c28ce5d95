package models

import "time"

type ImportJob struct {
	ID            string
	TenantID      string
	UserID        string
	AreaID        *string
	ObjectPath    string
	Filename      string
	Checksum      string
	ContentType   string
	SizeBytes     int64
	Status        string
	TotalRows     int
	ProcessedRows int
	SuccessRows   int
	ErrorRows     int
	Metadata      []byte
	ErrorSummary  string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

type ImportJobItem struct {
	ID          string
	JobID       string
	RowNumber   int
	EntityType  string
	NaturalKey  string
	EntityID    *string
	Action      string
	Status      string
	Error       string
	Warnings    []byte
	RawRows     []byte
	ProcessedAt time.Time
}
