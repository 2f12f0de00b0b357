package utils

import (
	"fmt"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// StellarRail submits payout transactions on the Stellar network. It is the
// production implementation of services.PayoutRail; settlement treats it as
// fire-and-forget.
type StellarRail struct {
	client            *horizonclient.Client
	networkPassphrase string
	sourceSecret      string
	usdcIssuer        string
}

func NewStellarRail(horizonURL, networkPassphrase, sourceSecret, usdcIssuer string) *StellarRail {
	return &StellarRail{
		client:            &horizonclient.Client{HorizonURL: horizonURL},
		networkPassphrase: networkPassphrase,
		sourceSecret:      sourceSecret,
		usdcIssuer:        usdcIssuer,
	}
}

// InitiatePayout builds, signs and submits a payment from the platform payout
// account to the freelancer's address. Returns the transaction hash.
func (s *StellarRail) InitiatePayout(destination string, amount float64, currency string) (string, error) {
	sourceKP, err := keypair.ParseFull(s.sourceSecret)
	if err != nil {
		return "", fmt.Errorf("invalid payout source secret: %w", err)
	}

	sourceAccount, err := s.client.AccountDetail(horizonclient.AccountRequest{
		AccountID: sourceKP.Address(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to load payout source account: %w", err)
	}

	var asset txnbuild.Asset
	if currency == "XLM" {
		asset = txnbuild.NativeAsset{}
	} else {
		asset = txnbuild.CreditAsset{Code: currency, Issuer: s.usdcIssuer}
	}

	tx, err := txnbuild.NewTransaction(
		txnbuild.TransactionParams{
			SourceAccount:        &sourceAccount,
			IncrementSequenceNum: true,
			BaseFee:              txnbuild.MinBaseFee,
			Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
			Operations: []txnbuild.Operation{
				&txnbuild.Payment{
					Destination: destination,
					Amount:      fmt.Sprintf("%.7f", amount),
					Asset:       asset,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to build payout transaction: %w", err)
	}

	tx, err = tx.Sign(s.networkPassphrase, sourceKP)
	if err != nil {
		return "", fmt.Errorf("failed to sign payout transaction: %w", err)
	}

	txResp, err := s.client.SubmitTransaction(tx)
	if err != nil {
		return "", fmt.Errorf("failed to submit payout transaction: %w", err)
	}

	return txResp.Hash, nil
}

// ValidateAccount checks that a Stellar address exists on the network.
func (s *StellarRail) ValidateAccount(accountID string) error {
	_, err := s.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		return fmt.Errorf("invalid or non-existent account: %w", err)
	}
	return nil
}
