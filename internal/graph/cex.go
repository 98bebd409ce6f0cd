package graph

// ---------------------------------------------------------------------------
// CEX hot wallets — funding through an exchange says nothing about ownership
// ---------------------------------------------------------------------------

// cexWallets maps known Solana exchange hot wallets to the exchange name.
// Read-only; extra wallets come from Config.CEXWallets.
var cexWallets = map[string]string{
	"5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9": "binance",
	"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM": "binance",
	"2ojv9BAiHUrvsm9gxDe7fJSzbNZSJcxZvf8dqmWGHG8S": "binance",
	"3yFwqXBfZY4jBVUafQ1YEXw189y2dN3V5KQq9uzBDy1E": "binance",
	"HN7cABqLq46Es1jh92dQQisAq662SmxELLLsHHe4YWrH": "binance",
	"GJRs4FwHtemZ5ZE9x3FNvJ8TMwitKTh21yxdRPqn7npE": "coinbase",
	"H8sMJSCQxfKiFTCfDR3DUMLPwcRbM61LGFJ8N4dK3WjS": "coinbase",
	"2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm": "coinbase",
	"FWznbcNXWQuHTawe9RxvQ2LdCENssh12dsznf4RiouN5": "kraken",
	"5VCwKtCXgCJ6kit5FybXjvFnPXCrKoKwFqgq5YVe1rAS": "okx",
	"GBCxMjyaNya5cQk7rAFj6AeUQRYXs2NxaVyUgQsq87nS": "okx",
	"AC5RDfQFmDS1deWZos921JfqscXdByf6BKHAbETSYnh7": "bybit",
	"u6PJ8DtQuPFnfmwHbGFULQ4u4EgjDiyYKjVEsynXq2w":  "gateio",
	"BmFdpraQhkiDQE6SnfG5PVddTtR3GYBnCkEHAowHvPLJ": "kucoin",

	// High-traffic program accounts behave like exchanges for funding purposes.
	"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1": "raydium_authority",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "jupiter_aggregator",
}

// IsCEXWallet reports whether address is a built-in exchange wallet and which one.
func IsCEXWallet(address string) (string, bool) {
	exchange, ok := cexWallets[address]
	return exchange, ok
}

// CEXWalletCount returns the number of built-in exchange wallets.
func CEXWalletCount() int {
	return len(cexWallets)
}

// cexSet is the built-in table plus configured extras. Never mutated after
// construction.
type cexSet map[string]string

func newCEXSet(extra map[string]string) cexSet {
	set := make(cexSet, len(cexWallets)+len(extra))
	for addr, exchange := range cexWallets {
		set[addr] = exchange
	}
	for addr, exchange := range extra {
		if addr != "" {
			set[addr] = exchange
		}
	}
	return set
}

// cuts reports whether a funding edge touches an exchange wallet and must
// not be traversed.
func (c cexSet) cuts(from, to string) bool {
	_, fromCEX := c[from]
	_, toCEX := c[to]
	return fromCEX || toCEX
}
