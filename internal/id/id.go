package id

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	routererr "github.com/solswap/router/internal/errors"
)

// Chain identifies a supported network and carries the identifier each
// provider uses for it. Provider identifier spaces differ: relay and debridge
// both use numeric ids but disagree on the id for Solana.
type Chain struct {
	Name           string
	Slug           string
	CAIP2          string
	EVMChainID     int64
	RelayID        int64
	DebridgeID     int64
	NativeSymbol   string
	NativeDecimals int
	Explorer       string
}

func (c Chain) IsEVM() bool {
	return strings.HasPrefix(c.CAIP2, "eip155:")
}

func (c Chain) IsSolana() bool {
	return strings.HasPrefix(c.CAIP2, "solana:")
}

func (c Chain) IsZero() bool { return c.CAIP2 == "" }

// Token is a chain-scoped asset. Address is an ERC-20 address on EVM chains
// and a mint on Solana; the zero-value address sentinel for the chain's native
// asset is resolved through NativeAddress.
type Token struct {
	Symbol   string
	Address  string
	Decimals int
	// TransferFeeBps is non-zero for fee-on-transfer SPL tokens (Token-2022
	// transfer fee extension). The sponsor cost estimator charges for it.
	TransferFeeBps int64
}

func (t Token) IsZero() bool { return t.Address == "" && t.Symbol == "" }

const (
	solanaMainnetCAIP2 = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"

	// Native-asset sentinels in the provider identifier spaces.
	evmNativeAddress    = "0x0000000000000000000000000000000000000000"
	solanaNativeAddress = "11111111111111111111111111111111"

	relaySolanaID    = 792703809
	debridgeSolanaID = 7565164
)

var chainBySlug = map[string]Chain{
	"solana": {
		Name: "Solana", Slug: "solana", CAIP2: solanaMainnetCAIP2,
		RelayID: relaySolanaID, DebridgeID: debridgeSolanaID,
		NativeSymbol: "SOL", NativeDecimals: 9,
		Explorer: "https://solscan.io/tx/",
	},
	"ethereum": {
		Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", EVMChainID: 1,
		RelayID: 1, DebridgeID: 1,
		NativeSymbol: "ETH", NativeDecimals: 18,
		Explorer: "https://etherscan.io/tx/",
	},
	"base": {
		Name: "Base", Slug: "base", CAIP2: "eip155:8453", EVMChainID: 8453,
		RelayID: 8453, DebridgeID: 8453,
		NativeSymbol: "ETH", NativeDecimals: 18,
		Explorer: "https://basescan.org/tx/",
	},
	"arbitrum": {
		Name: "Arbitrum", Slug: "arbitrum", CAIP2: "eip155:42161", EVMChainID: 42161,
		RelayID: 42161, DebridgeID: 42161,
		NativeSymbol: "ETH", NativeDecimals: 18,
		Explorer: "https://arbiscan.io/tx/",
	},
	"optimism": {
		Name: "Optimism", Slug: "optimism", CAIP2: "eip155:10", EVMChainID: 10,
		RelayID: 10, DebridgeID: 10,
		NativeSymbol: "ETH", NativeDecimals: 18,
		Explorer: "https://optimistic.etherscan.io/tx/",
	},
	"polygon": {
		Name: "Polygon", Slug: "polygon", CAIP2: "eip155:137", EVMChainID: 137,
		RelayID: 137, DebridgeID: 137,
		NativeSymbol: "POL", NativeDecimals: 18,
		Explorer: "https://polygonscan.com/tx/",
	},
	"bsc": {
		Name: "BSC", Slug: "bsc", CAIP2: "eip155:56", EVMChainID: 56,
		RelayID: 56, DebridgeID: 56,
		NativeSymbol: "BNB", NativeDecimals: 18,
		Explorer: "https://bscscan.com/tx/",
	},
}

var chainAliases = map[string]string{
	"mainnet":        "ethereum",
	"eth":            "ethereum",
	"solana-mainnet": "solana",
	"mainnet-beta":   "solana",
	"sol":            "solana",
	"matic":          "polygon",
	"op":             "optimism",
	"arb":            "arbitrum",
}

// Bootstrap token registry per chain. Symbols resolve deterministically;
// unknown assets can still be addressed directly.
var tokenRegistry = map[string][]Token{
	solanaMainnetCAIP2: {
		{Symbol: "SOL", Address: solanaNativeAddress, Decimals: 9},
		{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
		{Symbol: "USDT", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
		{Symbol: "JUP", Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
		{Symbol: "BONK", Address: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5},
	},
	"eip155:1": {
		{Symbol: "ETH", Address: evmNativeAddress, Decimals: 18},
		{Symbol: "USDC", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "USDT", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		{Symbol: "DAI", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
		{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
	},
	"eip155:8453": {
		{Symbol: "ETH", Address: evmNativeAddress, Decimals: 18},
		{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		{Symbol: "WETH", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	},
	"eip155:42161": {
		{Symbol: "ETH", Address: evmNativeAddress, Decimals: 18},
		{Symbol: "USDC", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
		{Symbol: "USDT", Address: "0xFd086bC7CD5C481DCC9C85ebe478A1C0b69FCbb9", Decimals: 6},
		{Symbol: "WETH", Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18},
	},
	"eip155:10": {
		{Symbol: "ETH", Address: evmNativeAddress, Decimals: 18},
		{Symbol: "USDC", Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", Decimals: 6},
	},
	"eip155:137": {
		{Symbol: "POL", Address: evmNativeAddress, Decimals: 18},
		{Symbol: "USDC", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
	},
	"eip155:56": {
		{Symbol: "BNB", Address: evmNativeAddress, Decimals: 18},
		{Symbol: "USDC", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18},
	},
}

func ParseChain(input string) (Chain, error) {
	slug := strings.ToLower(strings.TrimSpace(input))
	if alias, ok := chainAliases[slug]; ok {
		slug = alias
	}
	chain, ok := chainBySlug[slug]
	if !ok {
		return Chain{}, routererr.New(routererr.CodeValidation, fmt.Sprintf("unknown chain %q", input))
	}
	return chain, nil
}

// ParseToken resolves a symbol or raw address against the chain's registry.
// Addresses that are not in the registry still resolve, with unknown decimals
// left at -1 for the caller to fill from provider metadata.
func ParseToken(input string, chain Chain) (Token, error) {
	v := strings.TrimSpace(input)
	if v == "" {
		return Token{}, routererr.New(routererr.CodeValidation, "token is required")
	}
	tokens := tokenRegistry[chain.CAIP2]
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, v) {
			return t, nil
		}
	}
	if looksLikeAddress(v, chain) {
		for _, t := range tokens {
			if SameAddress(t.Address, v) {
				return t, nil
			}
		}
		return Token{Symbol: "", Address: v, Decimals: -1}, nil
	}
	return Token{}, routererr.New(routererr.CodeValidation, fmt.Sprintf("unknown token %q on %s", input, chain.Slug))
}

// NativeToken returns the chain's gas token.
func NativeToken(chain Chain) Token {
	address := solanaNativeAddress
	if chain.IsEVM() {
		address = evmNativeAddress
	}
	return Token{Symbol: chain.NativeSymbol, Address: address, Decimals: chain.NativeDecimals}
}

func (t Token) IsNative(chain Chain) bool {
	return SameAddress(t.Address, NativeToken(chain).Address)
}

// SameAddress compares token addresses. Hex addresses compare
// case-insensitively (EIP-55 checksums differ in casing only); anything else,
// Solana mints included, compares byte-for-byte.
func SameAddress(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return a == b
}

// IsStableSymbol reports whether the symbol is a USD stablecoin. Used by the
// sponsor fee selector to prefer charging in the destination stablecoin.
func IsStableSymbol(symbol string) bool {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "USDC", "USDT", "DAI", "USDE", "PYUSD", "FDUSD", "USDS":
		return true
	default:
		return false
	}
}

// Chains returns the full registry, for the chains/routes listing surfaces.
func Chains() []Chain {
	out := make([]Chain, 0, len(chainBySlug))
	for _, c := range chainBySlug {
		out = append(out, c)
	}
	return out
}

func looksLikeAddress(v string, chain Chain) bool {
	if chain.IsEVM() {
		return common.IsHexAddress(v)
	}
	if len(v) < 32 || len(v) > 44 {
		return false
	}
	for _, r := range v {
		if !strings.ContainsRune("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz", r) {
			return false
		}
	}
	return true
}
