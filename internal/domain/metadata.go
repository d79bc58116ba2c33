package domain

// TokenMetadata describes a token, fixed at ledger genesis.
// Corresponds to the token_metadata table in PostgreSQL.
type TokenMetadata struct {
	Token       Address // token contract address
	Name        string  // token name
	Symbol      string  // token symbol
	Decimals    uint8   // display decimals
	TotalSupply Amount  // minted once at genesis; equals the balance sum at all times
	FetchedAt   int64   // when metadata was read from the node (ms)
}
