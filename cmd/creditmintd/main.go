// Command creditmintd is a local operator shell for a credit mint. It
// does not start an HTTP or RPC listener: every subcommand opens the
// bolt-backed store directly and talks to an in-process mint.Mint, the
// way the teacher's cmd/nutw talks to an in-process wallet.Wallet
// rather than a remote server.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"

	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/mint"
	"github.com/bitcredit/creditmint/storage/bolt"
)

func main() {
	app := &cli.App{
		Name:  "creditmintd",
		Usage: "bill-endorsement credit mint operator shell",
		Commands: []*cli.Command{
			keysCmd,
			quoteCmd,
			acceptCmd,
			declineCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openMint loads the mnemonic (generating and persisting one on first
// run, the way wallet.LoadWallet does), opens the bolt store and wires
// a mint.Mint from it.
func openMint(cfg mint.Config) (*mint.Mint, *bolt.DB, error) {
	mnemonic, err := loadOrCreateMnemonic(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading mnemonic: %w", err)
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving master key: %w", err)
	}

	db, err := bolt.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	logger, err := mint.NewLogger(cfg.DataDir, cfg.LogLevel)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("setting up logger: %w", err)
	}

	repos := mint.Repositories{
		Quotes:    db.Quotes(),
		QuoteKeys: db.QuoteKeys(),
		Endorsed:  db.Endorsed(),
		Maturity:  db.Maturity(),
		Debit:     db.Debit(),
		Proofs:    db.Proofs(),
	}

	return mint.New(master, repos, nil, logger), db, nil
}

func loadOrCreateMnemonic(dataDir string) (string, error) {
	path := dataDir + "/mnemonic.txt"
	data, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(mnemonic+"\n"), 0600); err != nil {
		return "", err
	}
	fmt.Printf("generated new mnemonic, back it up: %v\n", mnemonic)
	return mnemonic, nil
}

func printErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

var keysCmd = &cli.Command{
	Name:   "keys",
	Usage:  "Print the active debit keyset",
	Action: keys,
}

func keys(ctx *cli.Context) error {
	m, db, err := openMint(mint.GetConfig())
	if err != nil {
		printErr(err)
	}
	defer db.Close()

	info, err := m.ActiveDebitKeyset()
	if err != nil {
		printErr(err)
	}
	if info == nil {
		fmt.Println("no active debit keyset yet")
		return nil
	}

	fmt.Printf("id:        %v\n", info.ID.String())
	fmt.Printf("unit:      %v\n", info.Unit)
	fmt.Printf("valid from: %v\n", info.ValidFrom)
	if info.ValidTo != nil {
		fmt.Printf("valid to:   %v\n", *info.ValidTo)
	}
	fmt.Printf("max order: %v\n", info.MaxOrder)
	return nil
}

var quoteCmd = &cli.Command{
	Name:  "quote",
	Usage: "Submit a quote request for a bill endorsement",
	ArgsUsage: "[BILL] [ENDORSER] [MATURITY_DAYS] [AMOUNT:B_]...\n" +
		"   each AMOUNT:B_ is a denomination paired with the wallet's " +
		"hex-encoded blinded message for it; blinding is the wallet's job, " +
		"not this mint's",
	Action: requestQuote,
}

func requestQuote(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 4 {
		printErr(errors.New("usage: quote [BILL] [ENDORSER] [MATURITY_DAYS] [AMOUNT:B_]..."))
	}
	bill, endorser := args.Get(0), args.Get(1)

	maturityDays, err := strconv.ParseUint(args.Get(2), 10, 32)
	if err != nil {
		printErr(fmt.Errorf("invalid maturity days: %w", err))
	}

	blinds := make([]ecash.BlindedMessage, 0, args.Len()-3)
	for _, raw := range args.Slice()[3:] {
		b, err := parseBlindedMessage(raw)
		if err != nil {
			printErr(fmt.Errorf("invalid blinded message %q: %w", raw, err))
		}
		blinds = append(blinds, b)
	}

	m, db, err := openMint(mint.GetConfig())
	if err != nil {
		printErr(err)
	}
	defer db.Close()

	now := time.Now()
	billMaturity := time.Unix(int64(maturityDays)*86400, 0)
	id, err := m.RequestQuote(bill, endorser, blinds, billMaturity, now)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("quote: %v\n", id)
	return nil
}

// parseBlindedMessage decodes a wallet-supplied "amount:hex(B_)" pair.
// The mint never blinds on a wallet's behalf; it only ever sees B_
// already built from the wallet's secret and blinding factor.
func parseBlindedMessage(raw string) (ecash.BlindedMessage, error) {
	amountStr, hexB, ok := strings.Cut(raw, ":")
	if !ok {
		return ecash.BlindedMessage{}, errors.New("expected AMOUNT:B_")
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return ecash.BlindedMessage{}, fmt.Errorf("amount: %w", err)
	}
	B_, err := hex.DecodeString(hexB)
	if err != nil {
		return ecash.BlindedMessage{}, fmt.Errorf("B_: %w", err)
	}
	return ecash.BlindedMessage{Amount: amount, B_: B_}, nil
}

var acceptCmd = &cli.Command{
	Name:      "accept",
	Usage:     "Accept a pending quote and sign its blinded messages",
	ArgsUsage: "[QUOTE_ID]",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "ttl",
			Usage: "how long the issued signatures remain valid",
			Value: time.Hour,
		},
	},
	Action: acceptQuote,
}

func acceptQuote(ctx *cli.Context) error {
	id, err := parseQuoteArg(ctx)
	if err != nil {
		printErr(err)
	}

	m, db, err := openMint(mint.GetConfig())
	if err != nil {
		printErr(err)
	}
	defer db.Close()

	sigs, err := m.AcceptQuote(id, time.Now().Add(ctx.Duration("ttl")))
	if err != nil {
		printErr(err)
	}

	fmt.Printf("accepted, %d signature(s) issued\n", len(sigs))
	return nil
}

var declineCmd = &cli.Command{
	Name:      "decline",
	Usage:     "Decline a pending quote",
	ArgsUsage: "[QUOTE_ID]",
	Action:    declineQuote,
}

func declineQuote(ctx *cli.Context) error {
	id, err := parseQuoteArg(ctx)
	if err != nil {
		printErr(err)
	}

	m, db, err := openMint(mint.GetConfig())
	if err != nil {
		printErr(err)
	}
	defer db.Close()

	if err := m.DeclineQuote(id); err != nil {
		printErr(err)
	}

	fmt.Println("declined")
	return nil
}

func parseQuoteArg(ctx *cli.Context) (uuid.UUID, error) {
	args := ctx.Args()
	if args.Len() < 1 {
		return uuid.Nil, errors.New("quote id required")
	}
	return uuid.Parse(args.First())
}
