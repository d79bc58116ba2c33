package domain

// VolumePoint is a per-block transfer volume aggregate.
// Corresponds to the transfer_volume table in ClickHouse.
type VolumePoint struct {
	BlockNumber   uint64 // block the aggregate covers
	MinedAt       int64  // block timestamp (ms)
	TransferCount uint32 // mined transfers in the block
	TokenVolume   Amount // token units moved
	NativeVolume  Amount // native units moved
}
