package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/execution"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/out"
	"github.com/solswap/router/internal/version"
)

type swapFlags struct {
	fromChain string
	toChain   string
	fromToken string
	toToken   string
	amount    string
	exactOut  bool
	user      string
	recipient string
	feePayer  string
}

func addSwapFlags(fs *pflag.FlagSet, flags *swapFlags) {
	fs.StringVar(&flags.fromChain, "from-chain", "", "origin chain (e.g. solana)")
	fs.StringVar(&flags.toChain, "to-chain", "", "destination chain (e.g. base)")
	fs.StringVar(&flags.fromToken, "from-token", "", "origin token symbol or address")
	fs.StringVar(&flags.toToken, "to-token", "", "destination token symbol or address")
	fs.StringVar(&flags.amount, "amount", "", "amount in token units (e.g. 1.5)")
	fs.BoolVar(&flags.exactOut, "exact-out", false, "fix the destination amount instead of the origin amount")
	fs.StringVar(&flags.user, "user", "", "user address (defaults to the wallet address)")
	fs.StringVar(&flags.recipient, "recipient", "", "recipient address (defaults to the user)")
	fs.StringVar(&flags.feePayer, "fee-payer", "", "force rent/fee payer: sponsor or user")
}

func registerSwapFlags(cmd *cobra.Command, flags *swapFlags) {
	addSwapFlags(cmd.Flags(), flags)
	_ = cmd.MarkFlagRequired("from-chain")
	_ = cmd.MarkFlagRequired("to-chain")
	_ = cmd.MarkFlagRequired("from-token")
	_ = cmd.MarkFlagRequired("to-token")
	_ = cmd.MarkFlagRequired("amount")
}

func (s *runtimeState) buildRequest(flags swapFlags) (model.SwapRequest, error) {
	originChain, err := id.ParseChain(flags.fromChain)
	if err != nil {
		return model.SwapRequest{}, err
	}
	destChain, err := id.ParseChain(flags.toChain)
	if err != nil {
		return model.SwapRequest{}, err
	}
	originToken, err := id.ParseToken(flags.fromToken, originChain)
	if err != nil {
		return model.SwapRequest{}, err
	}
	destToken, err := id.ParseToken(flags.toToken, destChain)
	if err != nil {
		return model.SwapRequest{}, err
	}

	direction := model.DirectionExactIn
	amountToken := originToken
	if flags.exactOut {
		direction = model.DirectionExactOut
		amountToken = destToken
	}
	amount, err := parseAmount(flags.amount, amountToken)
	if err != nil {
		return model.SwapRequest{}, err
	}

	user := strings.TrimSpace(flags.user)
	if user == "" && s.wallet != nil {
		user = s.wallet.Address()
	}
	if user == "" {
		return model.SwapRequest{}, routererr.New(routererr.CodeUsage, "provide --user or configure a wallet key")
	}

	if fp := strings.ToLower(strings.TrimSpace(flags.feePayer)); fp != "" && fp != "sponsor" && fp != "user" {
		return model.SwapRequest{}, routererr.New(routererr.CodeUsage, "--fee-payer must be sponsor or user")
	}

	return model.SwapRequest{
		OriginChain:      originChain,
		OriginToken:      originToken,
		DestChain:        destChain,
		DestToken:        destToken,
		Amount:           amount,
		Direction:        direction,
		UserAddress:      user,
		Recipient:        strings.TrimSpace(flags.recipient),
		FeePayerOverride: strings.ToLower(strings.TrimSpace(flags.feePayer)),
	}, nil
}

// parseAmount accepts a decimal amount for registry tokens and raw base units
// for tokens whose decimals are unknown.
func parseAmount(input string, token id.Token) (string, error) {
	if token.Decimals < 0 {
		if _, err := id.ParseBase(input); err != nil {
			return "", routererr.New(routererr.CodeUsage, "token decimals unknown, pass the amount in raw base units")
		}
		return strings.TrimSpace(input), nil
	}
	amount, err := id.DecimalToBase(input, token.Decimals)
	if err != nil {
		return "", err
	}
	if amount == "0" {
		return "", routererr.New(routererr.CodeUsage, "amount must be positive")
	}
	return amount, nil
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var flags swapFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch, filter and rank quotes for a swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := s.buildRequest(flags)
			if err != nil {
				return err
			}
			result, err := s.aggregator.Quotes(cmd.Context(), req)
			if err != nil {
				return err
			}
			return out.Render(s.runner.stdout, result, s.settings.OutputMode)
		},
	}
	registerSwapFlags(cmd, &flags)
	return cmd
}

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	var flags swapFlags
	var provider string
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Quote a swap and execute the best route",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.wallet == nil {
				return routererr.New(routererr.CodeUsage,
					"execution requires a signing key; set "+s.settings.PrivateKeyEnv)
			}
			req, err := s.buildRequest(flags)
			if err != nil {
				return err
			}
			result, err := s.aggregator.Quotes(cmd.Context(), req)
			if err != nil {
				return err
			}
			selected := result.Best
			if provider != "" {
				selected = nil
				for i := range result.Quotes {
					if string(result.Quotes[i].Provider) == provider {
						selected = &result.Quotes[i]
						break
					}
				}
				if selected == nil {
					return routererr.New(routererr.CodeUsage, "no eligible quote from provider "+provider)
				}
			}

			orch := s.newOrchestrator()
			orch.OnEvent = func(e execution.Event) {
				line := e.Stage
				if e.Message != "" {
					line += ": " + e.Message
				}
				if e.Signature != "" {
					line += " " + e.Signature
				}
				fmt.Fprintln(s.runner.stderr, line)
			}
			outcome, err := orch.Execute(cmd.Context(), req, *selected)
			if err != nil {
				return err
			}
			return out.Render(s.runner.stdout, outcome, s.settings.OutputMode)
		},
	}
	registerSwapFlags(cmd, &flags)
	cmd.Flags().StringVar(&provider, "provider", "", "execute a specific provider instead of the best quote")
	return cmd
}

type routeListing struct {
	ChainID           int64  `json:"chain_id"`
	Name              string `json:"name"`
	SupportsAllTokens bool   `json:"supports_all_tokens"`
	TokenCount        int    `json:"token_count"`
}

func (s *runtimeState) newRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List chains and token support known to the route validator",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot := s.validator.Snapshot(cmd.Context())
			if len(snapshot) == 0 {
				return routererr.New(routererr.CodeUnavailable, "route metadata is unavailable")
			}
			listings := make([]routeListing, 0, len(snapshot))
			for _, c := range snapshot {
				listings = append(listings, routeListing{
					ChainID:           c.ChainID,
					Name:              c.Name,
					SupportsAllTokens: c.SupportsAllTokens,
					TokenCount:        len(c.Tokens),
				})
			}
			sort.Slice(listings, func(i, j int) bool { return listings[i].ChainID < listings[j].ChainID })
			return out.Render(s.runner.stdout, listings, s.settings.OutputMode)
		},
	}
}

type providerListing struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Routes   string `json:"routes"`
	FeePayer string `json:"fee_payer"`
}

func (s *runtimeState) newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List quote providers and their capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			listings := []providerListing{
				{Name: string(model.ProviderRelay), Kind: "bridge", Routes: "cross-chain and same-chain", FeePayer: "sponsor"},
				{Name: string(model.ProviderDebridge), Kind: "bridge", Routes: "cross-chain", FeePayer: "user"},
				{Name: string(model.ProviderUltra), Kind: "dex", Routes: "same-chain solana", FeePayer: "sponsor"},
			}
			return out.Render(s.runner.stdout, listings, s.settings.OutputMode)
		},
	}
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var user string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past swaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.TrimSpace(user)
			if address == "" && s.wallet != nil {
				address = s.wallet.Address()
			}
			records, err := s.history.ListByUser(address, limit)
			if err != nil {
				return err
			}
			return out.Render(s.runner.stdout, records, s.settings.OutputMode)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "filter by user address")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(s.runner.stdout, version.CLIName+" "+version.Long())
			return err
		},
	}
}
