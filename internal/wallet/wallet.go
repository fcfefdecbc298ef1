package wallet

import (
	"context"

	"github.com/solswap/router/internal/model"
)

// Wallet abstracts the origin-chain account: signing, submission, status and
// the balance reads the quote pipeline depends on. Adapters and the execution
// orchestrator take this interface so tests can substitute a fake.
type Wallet interface {
	// Address is the base58 public key of the signing account.
	Address() string

	// SignTransaction signs a base64-serialized transaction and returns the
	// signed transaction, base64 again.
	SignTransaction(ctx context.Context, txBase64 string) (string, error)

	// SendTransaction submits a signed base64 transaction and returns its
	// signature.
	SendTransaction(ctx context.Context, signedBase64 string) (string, error)

	// TransactionStatus maps the cluster's view of the signature onto the
	// origin-transaction state machine.
	TransactionStatus(ctx context.Context, signature string) (model.TxStatus, error)

	// NativeBalance returns the account's lamport balance as a raw integer
	// string.
	NativeBalance(ctx context.Context) (string, error)

	// TokenBalance returns the raw balance of the account's associated token
	// account for mint, "0" when the account does not exist.
	TokenBalance(ctx context.Context, mint string) (string, error)

	// TokenAccountExists reports whether owner already has an associated token
	// account for mint.
	TokenAccountExists(ctx context.Context, owner, mint string) (bool, error)

	// RecentGasFee returns a per-transaction fee proxy in lamports.
	RecentGasFee(ctx context.Context) (uint64, error)
}
