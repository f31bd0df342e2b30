package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/crypto"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Store = (*FirestoreStore)(nil)

// FirestoreStore persists the session in a Firestore document, encrypted at
// rest. The document holds one opaque payload; overwriting it is the only
// write, so a session is always all-or-nothing.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	doc        string
	encryptor  *crypto.Encryptor
}

type sessionDoc struct {
	Payload   string    `firestore:"payload"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestoreStore creates a firestore-backed store. credentialsFile may be
// empty, in which case application default credentials are used.
func NewFirestoreStore(ctx context.Context, projectID, database, collection, doc, credentialsFile string, encryptor *crypto.Encryptor) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		doc:        doc,
		encryptor:  encryptor,
	}, nil
}

// Get reads and decrypts the session document
func (f *FirestoreStore) Get(ctx context.Context) (*Session, error) {
	snap, err := f.client.Collection(f.collection).Doc(f.doc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session document: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding session document: %w", err)
	}

	plaintext, err := f.encryptor.Decrypt(doc.Payload)
	if err != nil {
		return nil, fmt.Errorf("decrypting stored session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, fmt.Errorf("decoding stored session: %w", err)
	}
	return &s, nil
}

// Set encrypts and overwrites the session document
func (f *FirestoreStore) Set(ctx context.Context, s *Session) error {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	sealed, err := f.encryptor.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}

	_, err = f.client.Collection(f.collection).Doc(f.doc).Set(ctx, sessionDoc{
		Payload:   sealed,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("writing session document: %w", err)
	}
	return nil
}

// Clear deletes the session document. Deleting a missing document is not an
// error.
func (f *FirestoreStore) Clear(ctx context.Context) error {
	if _, err := f.client.Collection(f.collection).Doc(f.doc).Delete(ctx); err != nil {
		return fmt.Errorf("deleting session document: %w", err)
	}
	return nil
}

// Close releases the firestore client
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
