package contract

import "time"

// Contract is the record a document is submitted against. The approval
// engine only ever reads it.
type Contract struct {
	ID             string
	ContractNumber string
	ContractDate   time.Time
	CreatedAt      time.Time
}

// CreateParams enumerates the writable contract fields.
type CreateParams struct {
	ContractNumber string
	ContractDate   time.Time
}
