package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	metadataBucket    = []byte("metadata")    // exists flag, master hash, sealed marker
	credentialsBucket = []byte("credentials") // site -> boltCredential JSON
	orderBucket       = []byte("order")       // big-endian sequence -> site
	failureBucket     = []byte("last_failed") // lockout timestamp
)

// Metadata keys
var (
	keyExists = []byte("exists")
	keyHash   = []byte("mp_hash")
	keyMarker = []byte("enc_token")
	keyFailed = []byte("last_failed")
)

type boltCredential struct {
	Seq       uint64    `json:"seq"`
	Username  string    `json:"username,omitempty"`
	Secret    []byte    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Bolt is the bbolt-backed Store.
type Bolt struct {
	db *bolt.DB
}

var _ Store = (*Bolt)(nil)

// OpenBolt opens or creates the bbolt database at path.
func OpenBolt(path string, initialLastFailure time.Time) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, FileMode, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{metadataBucket, credentialsBucket, orderBucket, failureBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		failures := tx.Bucket(failureBucket)
		if failures.Get(keyFailed) == nil {
			return failures.Put(keyFailed, encodeTime(initialLastFailure))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Path returns the database file path
func (b *Bolt) Path() string {
	return b.db.Path()
}

// Close closes the database
func (b *Bolt) Close() error {
	return b.db.Close()
}

// GetVaultMetadata reads the metadata bucket
func (b *Bolt) GetVaultMetadata() (VaultMetadata, error) {
	var meta VaultMetadata
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(metadataBucket)
		if v := bucket.Get(keyExists); len(v) == 1 && v[0] == 1 {
			meta.Exists = true
		}
		meta.MasterHash = string(bucket.Get(keyHash))
		// Slices are only valid inside the transaction
		meta.EncryptedMarker = copyBytes(bucket.Get(keyMarker))
		return nil
	})
	if err != nil {
		return VaultMetadata{}, fmt.Errorf("store: failed to read vault metadata: %w", err)
	}
	return meta, nil
}

// SetVaultMetadata overwrites the metadata bucket
func (b *Bolt) SetVaultMetadata(meta VaultMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		return putMetadata(tx.Bucket(metadataBucket), meta)
	})
	if err != nil {
		return fmt.Errorf("store: failed to write vault metadata: %w", err)
	}
	return nil
}

func putMetadata(bucket *bolt.Bucket, meta VaultMetadata) error {
	if !meta.Exists {
		for _, key := range [][]byte{keyHash, keyMarker} {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return bucket.Put(keyExists, []byte{0})
	}

	if err := bucket.Put(keyHash, []byte(meta.MasterHash)); err != nil {
		return err
	}
	if err := bucket.Put(keyMarker, meta.EncryptedMarker); err != nil {
		return err
	}
	return bucket.Put(keyExists, []byte{1})
}

// CredentialExists reports whether site has a record
func (b *Bolt) CredentialExists(site string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(credentialsBucket).Get([]byte(site)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: failed to query credential: %w", err)
	}
	return exists, nil
}

// InsertCredential adds a record; ErrAlreadyExists if site is taken
func (b *Bolt) InsertCredential(cred Credential) error {
	if cred.Site == "" {
		return ErrEmptySite
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		creds := tx.Bucket(credentialsBucket)
		if creds.Get([]byte(cred.Site)) != nil {
			return ErrAlreadyExists
		}

		order := tx.Bucket(orderBucket)
		seq, err := order.NextSequence()
		if err != nil {
			return fmt.Errorf("store: failed to allocate sequence: %w", err)
		}

		data, err := json.Marshal(boltCredential{
			Seq:       seq,
			Username:  cred.Username,
			Secret:    cred.Secret,
			CreatedAt: cred.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("store: failed to encode credential: %w", err)
		}

		if err := creds.Put([]byte(cred.Site), data); err != nil {
			return fmt.Errorf("store: failed to insert credential: %w", err)
		}
		if err := order.Put(encodeSeq(seq), []byte(cred.Site)); err != nil {
			return fmt.Errorf("store: failed to insert credential: %w", err)
		}
		return nil
	})
}

// GetCredential reads a record; ErrNotFound if absent
func (b *Bolt) GetCredential(site string) (Credential, error) {
	var cred Credential
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(credentialsBucket).Get([]byte(site))
		if data == nil {
			return ErrNotFound
		}
		var rec boltCredential
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("store: failed to decode credential: %w", err)
		}
		cred = Credential{
			Site:      site,
			Username:  rec.Username,
			Secret:    rec.Secret,
			CreatedAt: rec.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// DeleteCredential removes a record and its order entry; ErrNotFound if absent
func (b *Bolt) DeleteCredential(site string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		creds := tx.Bucket(credentialsBucket)
		data := creds.Get([]byte(site))
		if data == nil {
			return ErrNotFound
		}
		var rec boltCredential
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("store: failed to decode credential: %w", err)
		}
		if err := tx.Bucket(orderBucket).Delete(encodeSeq(rec.Seq)); err != nil {
			return fmt.Errorf("store: failed to delete credential: %w", err)
		}
		if err := creds.Delete([]byte(site)); err != nil {
			return fmt.Errorf("store: failed to delete credential: %w", err)
		}
		return nil
	})
}

// ListSites returns all site names in insertion order
func (b *Bolt) ListSites() ([]string, error) {
	sites := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(orderBucket).ForEach(func(_, v []byte) error {
			sites = append(sites, string(v))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to list credentials: %w", err)
	}
	return sites, nil
}

// GetLastFailure reads the last lockout timestamp
func (b *Bolt) GetLastFailure() (time.Time, error) {
	var t time.Time
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(failureBucket).Get(keyFailed)
		if len(data) != 8 {
			return fmt.Errorf("last failure not found")
		}
		t = decodeTime(data)
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("store: failed to read last failure: %w", err)
	}
	return t, nil
}

// SetLastFailure overwrites the last lockout timestamp
func (b *Bolt) SetLastFailure(t time.Time) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(failureBucket).Put(keyFailed, encodeTime(t))
	})
	if err != nil {
		return fmt.Errorf("store: failed to write last failure: %w", err)
	}
	return nil
}

// Reset recreates the credential buckets and clears metadata in one transaction
func (b *Bolt) Reset(lastFailure time.Time) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{credentialsBucket, orderBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		if err := putMetadata(tx.Bucket(metadataBucket), VaultMetadata{}); err != nil {
			return err
		}
		return tx.Bucket(failureBucket).Put(keyFailed, encodeTime(lastFailure))
	})
	if err != nil {
		return fmt.Errorf("store: failed to reset: %w", err)
	}
	return nil
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(b []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)))
}
