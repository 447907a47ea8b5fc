package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// PartitionHeaderName carries the partition key of a snapshot request in
// gRPC metadata.
const PartitionHeaderName = "partition"

// Headers of the hosted document-store protocol.
const (
	MasterKeyHeaderName = "X-Master-Key"
	BinNameHeaderName   = "X-Bin-Name"
)
