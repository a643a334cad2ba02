// Package bolt is a single-file, durable-enough-to-restart-the-process
// storage backend for every C7 contract, grounded on the teacher's
// wallet/storage bbolt usage: one bucket per repository, JSON-encoded
// records, bolt.Update/bolt.View transactions.
package bolt

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/google/uuid"

	"github.com/bitcredit/creditmint/crypto"
	"github.com/bitcredit/creditmint/ecash"
	"github.com/bitcredit/creditmint/keyset"
	"github.com/bitcredit/creditmint/keysetid"
	"github.com/bitcredit/creditmint/quote"
)

const (
	quotesBucket     = "quotes"
	quoteKeysBucket  = "quote_keys"
	endorsedBucket   = "endorsed_keys"
	maturityBucket   = "maturity_keys"
	debitBucket      = "debit_keys"
	debitActiveKey   = "active"
	proofsBucket     = "proofs"
)

// DB opens a single bbolt file and exposes one repository type per C7
// contract, all backed by the same file.
type DB struct {
	bolt *bolt.DB
}

func Open(dir string) (*DB, error) {
	db, err := bolt.Open(filepath.Join(dir, "creditmint.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: opening db: %w", err)
	}
	d := &DB{bolt: db}
	if err := d.initBuckets(); err != nil {
		return nil, fmt.Errorf("bolt: initializing buckets: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error { return d.bolt.Close() }

func (d *DB) initBuckets() error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{
			quotesBucket, quoteKeysBucket, endorsedBucket,
			maturityBucket, debitBucket, proofsBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Quotes returns a quote.Repository backed by this database.
func (d *DB) Quotes() *QuoteRepository { return &QuoteRepository{db: d} }

// QuoteKeys returns a keyset.QuoteKeysRepository backed by this database.
func (d *DB) QuoteKeys() *QuoteKeysRepository { return &QuoteKeysRepository{db: d} }

// Endorsed returns a keyset.Repository for the endorsement tier.
func (d *DB) Endorsed() *TierRepository { return &TierRepository{db: d, bucket: endorsedBucket} }

// Maturity returns a keyset.Repository for the maturity tier.
func (d *DB) Maturity() *TierRepository { return &TierRepository{db: d, bucket: maturityBucket} }

// Debit returns a keyset.ActiveRepository for the debit tier.
func (d *DB) Debit() *ActiveTierRepository {
	return &ActiveTierRepository{TierRepository: TierRepository{db: d, bucket: debitBucket}}
}

// Proofs returns a swap.ProofRepository backed by this database.
func (d *DB) Proofs() *ProofRepository { return &ProofRepository{db: d} }

// ---- quotes ----

type QuoteRepository struct{ db *DB }

type quoteRecord struct {
	ID         uuid.UUID
	Bill       string
	Endorser   string
	Submitted  time.Time
	Kind       quote.StatusKind
	Blinds     []ecash.BlindedMessage
	Signatures []ecash.BlindSignature
	TTL        time.Time
}

func toRecord(q quote.Quote) quoteRecord {
	st := q.Status()
	return quoteRecord{
		ID: q.ID, Bill: q.Bill, Endorser: q.Endorser, Submitted: q.Submitted,
		Kind: st.Kind, Blinds: st.Blinds, Signatures: st.Signatures, TTL: st.TTL,
	}
}

func fromRecord(r quoteRecord) quote.Quote {
	q := quote.New(r.Bill, r.Endorser, r.Blinds, r.Submitted)
	q.ID = r.ID
	switch r.Kind {
	case quote.Declined:
		_ = q.Decline()
	case quote.Accepted:
		_ = q.Accept(r.Signatures, r.TTL)
	}
	return q
}

func (qr *QuoteRepository) SearchByBill(bill, endorser string) (*quote.Quote, error) {
	var found *quote.Quote
	err := qr.db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(quotesBucket))
		return b.ForEach(func(_, v []byte) error {
			if found != nil {
				return nil
			}
			var rec quoteRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Bill == bill && rec.Endorser == endorser {
				q := fromRecord(rec)
				found = &q
			}
			return nil
		})
	})
	return found, err
}

func (qr *QuoteRepository) Store(q quote.Quote) error {
	data, err := json.Marshal(toRecord(q))
	if err != nil {
		return err
	}
	return qr.db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(quotesBucket)).Put([]byte(q.ID.String()), data)
	})
}

func (qr *QuoteRepository) Load(id uuid.UUID) (*quote.Quote, error) {
	var q *quote.Quote
	err := qr.db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(quotesBucket)).Get([]byte(id.String()))
		if v == nil {
			return nil
		}
		var rec quoteRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		got := fromRecord(rec)
		q = &got
		return nil
	})
	return q, err
}

func (qr *QuoteRepository) UpdateIfPending(q quote.Quote) error {
	return qr.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(quotesBucket))
		v := b.Get([]byte(q.ID.String()))
		if v == nil {
			return nil
		}
		var old quoteRecord
		if err := json.Unmarshal(v, &old); err != nil {
			return err
		}
		if old.Kind != quote.Pending {
			return nil
		}
		data, err := json.Marshal(toRecord(q))
		if err != nil {
			return err
		}
		return b.Put([]byte(q.ID.String()), data)
	})
}

func (qr *QuoteRepository) ListPending(since *time.Time) ([]uuid.UUID, error) {
	return qr.listByKind(quote.Pending, since)
}

func (qr *QuoteRepository) ListAccepted(since *time.Time) ([]uuid.UUID, error) {
	return qr.listByKind(quote.Accepted, since)
}

func (qr *QuoteRepository) listByKind(kind quote.StatusKind, since *time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := qr.db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(quotesBucket))
		return b.ForEach(func(_, v []byte) error {
			var rec quoteRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Kind != kind {
				return nil
			}
			if since != nil && rec.Submitted.Before(*since) {
				return nil
			}
			ids = append(ids, rec.ID)
			return nil
		})
	})
	return ids, err
}

// ---- quote keys ----

type QuoteKeysRepository struct{ db *DB }

func (r *QuoteKeysRepository) Store(quoteID uuid.UUID, e keyset.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := e.Info.ID.String() + ":" + quoteID.String()
	return r.db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(quoteKeysBucket)).Put([]byte(key), data)
	})
}

// ---- endorsed / maturity tiers ----

type TierRepository struct {
	db     *DB
	bucket string
}

func (r *TierRepository) Info(id keysetid.ID) (*keyset.Info, error) {
	e, err := r.Load(id)
	if err != nil || e == nil {
		return nil, err
	}
	return &e.Info, nil
}

func (r *TierRepository) KeySet(id keysetid.ID) (*crypto.MintKeySet, error) {
	e, err := r.Load(id)
	if err != nil || e == nil {
		return nil, err
	}
	return e.KeySet, nil
}

func (r *TierRepository) Load(id keysetid.ID) (*keyset.Entry, error) {
	var entry *keyset.Entry
	err := r.db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(r.bucket)).Get(id[:])
		if v == nil {
			return nil
		}
		var e keyset.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	return entry, err
}

func (r *TierRepository) Store(e keyset.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(r.bucket)).Put(e.Info.ID[:], data)
	})
}

// ---- debit tier (active pointer) ----

type ActiveTierRepository struct {
	TierRepository
}

func (r *ActiveTierRepository) Store(e keyset.Entry) error {
	if err := r.TierRepository.Store(e); err != nil {
		return err
	}
	if !e.Info.Active {
		return nil
	}
	return r.db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(r.bucket)).Put([]byte(debitActiveKey), e.Info.ID[:])
	})
}

func (r *ActiveTierRepository) activeID() (*keysetid.ID, error) {
	var id *keysetid.ID
	err := r.db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(r.bucket)).Get([]byte(debitActiveKey))
		if v == nil {
			return nil
		}
		var got keysetid.ID
		copy(got[:], v)
		id = &got
		return nil
	})
	return id, err
}

func (r *ActiveTierRepository) InfoActive() (*keyset.Info, error) {
	id, err := r.activeID()
	if err != nil || id == nil {
		return nil, err
	}
	return r.Info(*id)
}

func (r *ActiveTierRepository) KeySetActive() (*crypto.MintKeySet, error) {
	id, err := r.activeID()
	if err != nil || id == nil {
		return nil, err
	}
	return r.KeySet(*id)
}

// ---- proofs ----

type ProofRepository struct{ db *DB }

func proofKey(p ecash.Proof) []byte {
	return append(append([]byte{}, p.KeysetID[:]...), p.Secret...)
}

func (r *ProofRepository) Spend(proofs []ecash.Proof) error {
	return r.db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		for _, p := range proofs {
			if err := b.Put(proofKey(p), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProofRepository) GetState(proofs []ecash.Proof) ([]ecash.State, error) {
	states := make([]ecash.State, len(proofs))
	err := r.db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		for i, p := range proofs {
			if b.Get(proofKey(p)) != nil {
				states[i] = ecash.Spent
			} else {
				states[i] = ecash.Unspent
			}
		}
		return nil
	})
	return states, err
}
