package wallet

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/model"
)

// SolanaWallet signs and submits through a Solana JSON-RPC endpoint using a
// locally held keypair.
type SolanaWallet struct {
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

func NewSolanaWallet(rpcURL, privateKeyBase58 string) (*SolanaWallet, error) {
	if rpcURL == "" {
		return nil, routererr.New(routererr.CodeValidation, "solana rpc url is required")
	}
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeValidation, "invalid solana private key", err)
	}
	return &SolanaWallet{
		client:     rpc.New(rpcURL),
		privateKey: key,
		publicKey:  key.PublicKey(),
	}, nil
}

func (w *SolanaWallet) Address() string {
	return w.publicKey.String()
}

func (w *SolanaWallet) SignTransaction(ctx context.Context, txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(txBase64))
	if err != nil {
		return "", routererr.Wrap(routererr.CodeValidation, "transaction is not valid base64", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", routererr.Wrap(routererr.CodeValidation, "decode transaction", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.publicKey) {
			return &w.privateKey
		}
		return nil
	})
	if err != nil {
		return "", routererr.Wrap(routererr.CodeSubmission, "sign transaction", err)
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", routererr.Wrap(routererr.CodeInternal, "serialize signed transaction", err)
	}
	return base64.StdEncoding.EncodeToString(signed), nil
}

func (w *SolanaWallet) SendTransaction(ctx context.Context, signedBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signedBase64))
	if err != nil {
		return "", routererr.Wrap(routererr.CodeValidation, "transaction is not valid base64", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", routererr.Wrap(routererr.CodeValidation, "decode transaction", err)
	}
	sig, err := w.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", routererr.Wrap(routererr.CodeSubmission, "send transaction", err)
	}
	return sig.String(), nil
}

func (w *SolanaWallet) TransactionStatus(ctx context.Context, signature string) (model.TxStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return model.TxPending, routererr.Wrap(routererr.CodeValidation, "invalid signature", err)
	}
	out, err := w.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return model.TxPending, routererr.Wrap(routererr.CodeUnavailable, "signature status lookup", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		// Not yet observed by the cluster.
		return model.TxPending, nil
	}
	status := out.Value[0]
	if status.Err != nil {
		return model.TxFailed, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return model.TxFinalized, nil
	case rpc.ConfirmationStatusConfirmed:
		return model.TxConfirmed, nil
	default:
		return model.TxPending, nil
	}
}

func (w *SolanaWallet) NativeBalance(ctx context.Context) (string, error) {
	out, err := w.client.GetBalance(ctx, w.publicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return "", routererr.Wrap(routererr.CodeUnavailable, "balance lookup", err)
	}
	return strconv.FormatUint(out.Value, 10), nil
}

func (w *SolanaWallet) TokenBalance(ctx context.Context, mint string) (string, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return "", routererr.Wrap(routererr.CodeValidation, "invalid mint", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.publicKey, mintKey)
	if err != nil {
		return "", routererr.Wrap(routererr.CodeInternal, "derive token account", err)
	}
	out, err := w.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") {
			return "0", nil
		}
		return "", routererr.Wrap(routererr.CodeUnavailable, "token balance lookup", err)
	}
	if out == nil || out.Value == nil {
		return "0", nil
	}
	return out.Value.Amount, nil
}

func (w *SolanaWallet) TokenAccountExists(ctx context.Context, owner, mint string) (bool, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return false, routererr.Wrap(routererr.CodeValidation, "invalid owner address", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return false, routererr.Wrap(routererr.CodeValidation, "invalid mint", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return false, routererr.Wrap(routererr.CodeInternal, "derive token account", err)
	}
	info, err := w.client.GetAccountInfo(ctx, ata)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, routererr.Wrap(routererr.CodeUnavailable, "account lookup", err)
	}
	return info != nil && info.Value != nil, nil
}

// RecentGasFee returns a per-transaction lamport proxy: the base signature fee
// plus a priority surcharge estimated from recent prioritization fees at an
// assumed 200k compute-unit budget.
func (w *SolanaWallet) RecentGasFee(ctx context.Context) (uint64, error) {
	fees, err := w.client.GetRecentPrioritizationFees(ctx, solana.PublicKeySlice{})
	if err != nil {
		return 0, routererr.Wrap(routererr.CodeUnavailable, "prioritization fee lookup", err)
	}
	var max uint64
	for _, f := range fees {
		if f.PrioritizationFee > max {
			max = f.PrioritizationFee
		}
	}
	const computeUnits = 200_000
	surcharge := max * computeUnits / 1_000_000
	return 5_000 + surcharge, nil
}
