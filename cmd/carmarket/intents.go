package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/carmarket/internal/intent"
)

func printIntent(in *intent.Intent) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(in)
}

func newMintCmd() *cobra.Command {
	var form intent.MintForm
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Print a mint intent for an external signer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in, err := intent.BuildMint(cfg.Contract.Model(), form, intentLimits(cfg))
			if err != nil {
				return err
			}
			return printIntent(in)
		},
	}
	cmd.Flags().Uint64Var(&form.ModelID, "model", 0, "Car model ID (see /api/models)")
	cmd.Flags().StringVar(&form.Name, "name", "", "Car name")
	cmd.Flags().Uint64Var(&form.Speed, "speed", 0, "Car speed")
	return cmd
}

func newListCmd() *cobra.Command {
	var form intent.ListForm
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print a list intent for an external signer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			in, err := intent.BuildList(cfg.Contract.Model(), form)
			if err != nil {
				return err
			}
			return printIntent(in)
		},
	}
	cmd.Flags().StringVar(&form.CarObjectID, "car", "", "Car object ID")
	cmd.Flags().StringVar(&form.Price, "price", "", "Asking price in SUI, e.g. 1.5")
	return cmd
}

func newBuyCmd() *cobra.Command {
	var listingID, buyer string
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Print a buy intent for an external signer, priced from the live listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			suiClient, err := newSuiClient(cfg)
			if err != nil {
				return err
			}

			listing, err := suiClient.GetListing(cmd.Context(), listingID)
			if err != nil {
				return fmt.Errorf("failed to resolve listing %s: %w", listingID, err)
			}

			in, err := intent.BuildBuy(cfg.Contract.Model(), intent.BuyForm{
				ListingID: listingID,
				Price:     listing.Price,
				Seller:    listing.Seller,
				Buyer:     buyer,
			})
			if err != nil {
				return err
			}
			return printIntent(in)
		},
	}
	cmd.Flags().StringVar(&listingID, "listing", "", "Listing object ID")
	cmd.Flags().StringVar(&buyer, "buyer", "", "Buyer address")
	_ = cmd.MarkFlagRequired("listing")
	_ = cmd.MarkFlagRequired("buyer")
	return cmd
}
