package core

import (
	"fmt"
	"math/big"
)

const resourceWallet = "wallet"

type walletMintPayload struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type walletTransferPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
}

// applyWallet handles wallet.mint and wallet.transfer. The wallet resource
// chain is keyed by the issuing account, started implicitly on its first
// event — the ledger has no dedicated create operation, so any previously
// unseen issuer may begin its chain.
func applyWallet(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "wallet.mint":
		if !s.MintAuthorities[env.Issuer] {
			return nil, fmt.Errorf("%w: %s is not a mint authority", ErrUnauthorizedIssuer, env.Issuer)
		}
		var p walletMintPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if _, _, err := resourceHeadPrecondition(s, resourceWallet, env.Issuer, env, true); err != nil {
			return nil, err
		}
		s.Balances[p.To] = new(big.Int).Add(s.balance(p.To), amount)
		return []HeadUpdate{{Kind: resourceWallet, ID: env.Issuer, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "wallet.transfer":
		var p walletTransferPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		fee := big.NewInt(0)
		if p.Fee != "" {
			fee, err = parseAmount(p.Fee)
			if err != nil {
				return nil, err
			}
		}
		total := new(big.Int).Add(amount, fee)
		if s.balance(p.From).Cmp(total) < 0 {
			return nil, fmt.Errorf("%w: %s has insufficient balance for %s+%s", ErrInsufficientBalance, p.From, p.Amount, p.Fee)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceWallet, env.Issuer, env, true); err != nil {
			return nil, err
		}

		s.Balances[p.From] = new(big.Int).Sub(s.balance(p.From), total)
		s.Balances[p.To] = new(big.Int).Add(s.balance(p.To), amount)
		if fee.Sign() > 0 {
			s.FeePool = new(big.Int).Add(s.FeePool, fee)
		}
		return []HeadUpdate{{Kind: resourceWallet, ID: env.Issuer, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	default:
		return nil, nil
	}
}
