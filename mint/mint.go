// Package mint is the orchestration facade (C8): it wires the keyset-id
// codec, derivation engine, quote factory, keyset factory, cascading
// keyset repository and swap engine into the request-level operations a
// caller actually invokes, the way the teacher's mint.Mint wires the
// Cashu protocol's pieces together (minus its HTTP/Lightning surface,
// which is out of scope here).
package mint

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/cascade"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
	"github.com/bitcredit/creditmint/quote"
	"github.com/bitcredit/creditmint/swap"
)

// Mint ties the core components together behind a small request-level
// API. The master extended key is supplied once, at construction, and
// held read-only thereafter: every derivation call below only ever
// reads from it, so a *Mint is safe for concurrent use exactly to the
// extent its wired repositories are.
type Mint struct {
	master *hdkeychain.ExtendedKey

	quotes        quote.Repository
	quoteFactory  quote.Factory
	keysetFactory keyset.Factory
	keys          cascade.Repository
	swapService   swap.Service

	logger *slog.Logger
}

// Repositories bundles every storage dependency New needs, so that
// swapping storage/memory for storage/bolt (or a test double) is a
// one-line change at the call site.
type Repositories struct {
	Quotes    quote.Repository
	QuoteKeys keyset.QuoteKeysRepository
	Endorsed  keyset.Repository
	Maturity  keyset.Repository
	Debit     keyset.ActiveRepository
	Proofs    swap.ProofRepository
}

// New constructs a Mint from an already-derived master key and a set of
// storage backends. now is injected for deterministic tests; nil uses
// time.Now. logger is injected so a caller can redirect or disable
// logging; nil builds a discarding logger.
func New(master *hdkeychain.ExtendedKey, repos Repositories, now func() time.Time, logger *slog.Logger) *Mint {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	keys := cascade.Repository{
		Endorsed: repos.Endorsed,
		Maturity: repos.Maturity,
		Debit:    repos.Debit,
	}

	return &Mint{
		master:       master,
		quotes:       repos.Quotes,
		quoteFactory: quote.Factory{Quotes: repos.Quotes},
		keysetFactory: keyset.Factory{
			Master:       master,
			QuoteKeys:    repos.QuoteKeys,
			Endorsed:     repos.Endorsed,
			MaturityKeys: repos.Maturity,
			Now:          now,
		},
		keys:        keys,
		swapService: swap.Service{Keys: keys, Proofs: repos.Proofs},
		logger:      logger,
	}
}

// setupLogger opens (or creates) <dataDir>/creditmint.log and logs to
// both it and stdout, mirroring the teacher's setupLogger.
func setupLogger(dataDir string, level LogLevel) (*slog.Logger, error) {
	replacer := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	logFile, err := os.OpenFile(filepath.Join(dataDir, "creditmint.log"), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("mint: opening log file: %w", err)
	}

	logWriter := io.MultiWriter(os.Stdout, logFile)
	slogLevel := slog.LevelInfo
	switch level {
	case Debug:
		slogLevel = slog.LevelDebug
	case Disable:
		logWriter = io.Discard
	}

	return slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slogLevel,
		ReplaceAttr: replacer,
	})), nil
}

// NewLogger is setupLogger exported for cmd/creditmintd, which needs to
// build a logger before it has anything else to construct a Mint with.
func NewLogger(dataDir string, level LogLevel) (*slog.Logger, error) {
	return setupLogger(dataDir, level)
}

// logInfof/logErrorf/logDebugf preserve the caller's source position
// (via runtime.Callers) instead of attributing every log line to this
// file, the same trick the teacher's mint.Mint uses.
func (m *Mint) logInfof(format string, args ...any) {
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), slog.LevelInfo, fmt.Sprintf(format, args...), pcs[0])
	_ = m.logger.Handler().Handle(context.Background(), r)
}

func (m *Mint) logErrorf(format string, args ...any) {
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), slog.LevelError, fmt.Sprintf(format, args...), pcs[0])
	_ = m.logger.Handler().Handle(context.Background(), r)
}

func (m *Mint) logDebugf(format string, args ...any) {
	if !m.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), slog.LevelDebug, fmt.Sprintf(format, args...), pcs[0])
	_ = m.logger.Handler().Handle(context.Background(), r)
}

// sha256Digest adapts sha256.Sum256 to the digest func(string) [32]byte
// shape keysetid.FromBillEndorsement takes.
func sha256Digest(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

// RequestQuote allocates (or reuses) a quote for (bill, endorser),
// deriving its endorsement keyset — and, lazily, the bill's maturity
// keyset — only when a genuinely new quote id was allocated.
func (m *Mint) RequestQuote(bill, endorser string, blinds []ecash.BlindedMessage, billMaturity, submitted time.Time) (uuid.UUID, error) {
	existing, err := m.quotes.SearchByBill(bill, endorser)
	if err != nil {
		return uuid.Nil, fmt.Errorf("mint: checking for existing quote: %w", err)
	}

	id, err := m.quoteFactory.Generate(bill, endorser, blinds, submitted)
	if err != nil {
		return uuid.Nil, fmt.Errorf("mint: generating quote: %w", err)
	}

	isNew := existing == nil || existing.ID != id
	if !isNew {
		m.logDebugf("quote request for bill '%v' reuses existing quote '%v'", bill, id)
		return id, nil
	}

	kid := keysetid.FromBillEndorsement(bill, endorser, sha256Digest)
	if _, err := m.keysetFactory.Generate(kid, id, billMaturity); err != nil {
		return uuid.Nil, fmt.Errorf("mint: deriving keysets for quote '%v': %w", id, err)
	}
	m.logInfof("allocated quote '%v' for bill '%v' maturing %v", id, bill, billMaturity)

	return id, nil
}

// AcceptQuote signs a pending quote's blinded messages against its
// endorsement keyset and transitions it to Accepted.
func (m *Mint) AcceptQuote(id uuid.UUID, ttl time.Time) ([]ecash.BlindSignature, error) {
	q, err := m.quotes.Load(id)
	if err != nil {
		return nil, fmt.Errorf("mint: loading quote '%v': %w", id, err)
	}
	if q == nil {
		return nil, ecash.BuildError("unknown quote: "+id.String(), ecash.QuoteAlreadyResolvedCode)
	}
	if !q.IsPending() {
		return nil, ecash.ErrQuoteAlreadyResolved
	}

	kid := keysetid.FromBillEndorsement(q.Bill, q.Endorser, sha256Digest)
	entry, err := m.keys.Load(kid)
	if err != nil {
		return nil, fmt.Errorf("mint: loading endorsement keyset for quote '%v': %w", id, err)
	}
	if entry == nil {
		return nil, ecash.ErrUnknownKeyset(kid)
	}

	blinds := q.Status().Blinds
	signatures := make([]ecash.BlindSignature, 0, len(blinds))
	for _, b := range blinds {
		sig, err := signBlind(entry, b)
		if err != nil {
			return nil, fmt.Errorf("mint: signing quote '%v': %w", id, err)
		}
		signatures = append(signatures, sig)
	}

	if err := q.Accept(signatures, ttl); err != nil {
		return nil, err
	}
	if err := m.quotes.UpdateIfPending(*q); err != nil {
		return nil, fmt.Errorf("mint: persisting accepted quote '%v': %w", id, err)
	}
	m.logInfof("quote '%v' accepted, %d signatures issued", id, len(signatures))

	return signatures, nil
}

// DeclineQuote transitions a pending quote to Declined.
func (m *Mint) DeclineQuote(id uuid.UUID) error {
	q, err := m.quotes.Load(id)
	if err != nil {
		return fmt.Errorf("mint: loading quote '%v': %w", id, err)
	}
	if q == nil {
		return ecash.BuildError("unknown quote: "+id.String(), ecash.QuoteAlreadyResolvedCode)
	}
	if !q.IsPending() {
		return ecash.ErrQuoteAlreadyResolved
	}

	if err := q.Decline(); err != nil {
		return err
	}
	if err := m.quotes.UpdateIfPending(*q); err != nil {
		return fmt.Errorf("mint: persisting declined quote '%v': %w", id, err)
	}
	m.logInfof("quote '%v' declined", id)

	return nil
}

// Swap delegates straight to the swap engine.
func (m *Mint) Swap(inputs []ecash.Proof, outputs []ecash.BlindedMessage) ([]ecash.BlindSignature, error) {
	sigs, err := m.swapService.Swap(inputs, outputs)
	if err != nil {
		m.logErrorf("swap rejected: %v", err)
		return nil, err
	}
	m.logInfof("swap settled %d inputs into %d outputs", len(inputs), len(outputs))
	return sigs, nil
}

// ListPendingQuotes and ListAcceptedQuotes are thin pass-throughs to
// the quote repository.
func (m *Mint) ListPendingQuotes(since *time.Time) ([]uuid.UUID, error) {
	return m.quotes.ListPending(since)
}

func (m *Mint) ListAcceptedQuotes(since *time.Time) ([]uuid.UUID, error) {
	return m.quotes.ListAccepted(since)
}

// ActiveDebitKeyset exposes the debit tier's current active keyset info,
// used by cmd/creditmintd's "keys" subcommand.
func (m *Mint) ActiveDebitKeyset() (*keyset.Info, error) {
	return m.keys.Debit.InfoActive()
}
