package enum

// SyncState models the one-way initial sync transition for an account.
// Pending means the account has never completed a full fetch cycle;
// Active means history is populated and new mail may notify.
type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateActive  SyncState = "active"
)

func (t SyncState) String() string {
	return string(t)
}

type ConnectionStatus string

const (
	ConnectionActive    ConnectionStatus = "active"
	ConnectionNotActive ConnectionStatus = "not_active"
)

func (t ConnectionStatus) String() string {
	return string(t)
}
