package llm

// NewTestCallStore returns a call store backed by an in-memory bucket.
func NewTestCallStore() *CallStore {
	return NewCallStoreWithBucket(newMemKV())
}
