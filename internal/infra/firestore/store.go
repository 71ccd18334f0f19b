// Package firestore stores user progression in Google Cloud Firestore, the
// document database the Lock In mobile client syncs against.
//
// Layout:
//
//	users/{uid}                 progression document
//	users/{uid}/quests/{id}     structured quests
//	sessions/{id}               focus sessions (userId field)
//	xpTransactions/{id}         XP audit log (userId field)
//	badgeEvents/{id}            badge audit log (userId field)
package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lockin-app/lockin/internal/domain"
)

// Collection names.
const (
	colUsers          = "users"
	colSessions       = "sessions"
	colXPTransactions = "xpTransactions"
	colBadgeEvents    = "badgeEvents"
	colQuests         = "quests"
)

// maxBatchWrites is the Firestore limit of writes per batch commit.
const maxBatchWrites = 500

// Config selects the Firebase project and credentials.
type Config struct {
	ProjectID string
	// CredentialsFile is a service account key path.
	CredentialsFile string
	// CredentialsBase64 is a base64-encoded service account key; it takes
	// precedence over CredentialsFile.
	CredentialsBase64 string
}

// Store is a Firestore-backed domain.ProgressionStore.
type Store struct {
	client *firestore.Client
}

var _ domain.ProgressionStore = (*Store)(nil)

// Open initializes the Firebase app and its Firestore client. With neither
// credential set, application default credentials (or the emulator named
// by FIRESTORE_EMULATOR_HOST) are used.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(cfg.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("decode firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
		log.Printf("[firestore] using credentials from environment")
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		log.Printf("[firestore] using credentials file %s", cfg.CredentialsFile)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reads a sentinel document to check connectivity. A missing
// document still proves the backend answered.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(colUsers).Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return domain.WrapStore("ping", err)
	}
	return nil
}

func (s *Store) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(colUsers).Doc(userID)
}

// ─── Progression Store ──────────────────────────────────────────────────────

// CreateUser creates the document of p.UserID unless it exists.
func (s *Store) CreateUser(ctx context.Context, p domain.UserProgression) (bool, error) {
	_, err := s.userRef(p.UserID).Create(ctx, p)
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, domain.WrapStore("create user", err)
	}
	return true, nil
}

// GetUser returns the stored document of userID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.UserProgression, error) {
	snap, err := s.userRef(userID).Get(ctx)
	return decodeUser(userID, snap, err)
}

// Update runs fn in a Firestore transaction. Firestore may retry fn on
// contention; writes are buffered and applied after fn returns so every
// read precedes every write.
func (s *Store) Update(ctx context.Context, userID string, fn func(tx domain.ProgressionTx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		ref := s.userRef(userID)
		snap, err := ftx.Get(ref)
		u, err := decodeUser(userID, snap, err)
		if err != nil {
			return err
		}
		ptx := &progressionTx{ctx: ctx, store: s, tx: ftx, user: u}
		if err := fn(ptx); err != nil {
			return err
		}
		for _, w := range ptx.writes {
			if err := w(ftx); err != nil {
				return err
			}
		}
		return ftx.Set(ref, u)
	})
	return domain.WrapStore("transaction", err)
}

// SetSessionMood overwrites the mood of one of userID's sessions.
func (s *Store) SetSessionMood(ctx context.Context, userID, sessionID string, mood domain.Mood) error {
	ref := s.client.Collection(colSessions).Doc(sessionID)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.WrapStore("get session", err)
	}
	if owner, _ := snap.DataAt("userId"); owner != userID {
		return domain.ErrSessionNotFound
	}
	_, err = ref.Update(ctx, []firestore.Update{{Path: "mood", Value: string(mood)}})
	return domain.WrapStore("set mood", err)
}

// SessionsSince returns userID's sessions at or after since, oldest first.
func (s *Store) SessionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Session, error) {
	q := s.client.Collection(colSessions).
		Where("userId", "==", userID).
		Where("timestamp", ">=", since).
		OrderBy("timestamp", firestore.Asc)
	return collectSessions(q.Documents(ctx))
}

// Today aggregates userID's activity at or after since.
func (s *Store) Today(ctx context.Context, userID string, since time.Time) (domain.DayAggregate, error) {
	return s.aggregate(userID, since, func(q firestore.Query) *firestore.DocumentIterator {
		return q.Documents(ctx)
	})
}

// ListQuests returns userID's structured quests, newest first.
func (s *Store) ListQuests(ctx context.Context, userID string) ([]domain.Quest, error) {
	iter := s.userRef(userID).Collection(colQuests).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var quests []domain.Quest
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, domain.WrapStore("list quests", err)
		}
		q, err := decodeQuest(snap)
		if err != nil {
			return nil, err
		}
		quests = append(quests, *q)
	}
	return quests, nil
}

// DeleteUserData removes every record of userID: the top-level logs in
// concurrent batches of at most 500 deletes, then quests (failures logged
// and skipped), then the user document.
func (s *Store) DeleteUserData(ctx context.Context, userID string) (domain.DeleteReport, error) {
	var report domain.DeleteReport

	purges := []struct {
		collection string
		count      *int
	}{
		{colSessions, &report.Sessions},
		{colXPTransactions, &report.XPTransactions},
		{colBadgeEvents, &report.BadgeEvents},
	}
	for _, p := range purges {
		refs, err := s.refs(ctx, s.client.Collection(p.collection).Where("userId", "==", userID))
		if err != nil {
			return report, domain.WrapStore("list "+p.collection, err)
		}
		if err := s.deleteAll(ctx, refs); err != nil {
			return report, domain.WrapStore("delete "+p.collection, err)
		}
		*p.count = len(refs)
	}

	if n, err := s.deleteQuests(ctx, userID); err != nil {
		log.Printf("[firestore] quest cleanup for %s failed: %v", userID, err)
	} else {
		report.Quests = n
	}

	ref := s.userRef(userID)
	_, err := ref.Get(ctx)
	switch {
	case status.Code(err) == codes.NotFound:
		return report, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	case err != nil:
		return report, domain.WrapStore("get user", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return report, domain.WrapStore("delete user", err)
	}
	report.UserDeleted = true
	return report, nil
}

func (s *Store) deleteQuests(ctx context.Context, userID string) (int, error) {
	refs, err := s.refs(ctx, s.userRef(userID).Collection(colQuests).Query)
	if err != nil {
		return 0, err
	}
	if err := s.deleteAll(ctx, refs); err != nil {
		return 0, err
	}
	return len(refs), nil
}

// refs lists the document references matched by q without their data.
func (s *Store) refs(ctx context.Context, q firestore.Query) ([]*firestore.DocumentRef, error) {
	iter := q.Select().Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return refs, nil
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, snap.Ref)
	}
}

// deleteAll deletes refs in batches of maxBatchWrites committed concurrently.
func (s *Store) deleteAll(ctx context.Context, refs []*firestore.DocumentRef) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range Chunk(refs, maxBatchWrites) {
		g.Go(func() error {
			batch := s.client.Batch()
			for _, ref := range chunk {
				batch.Delete(ref)
			}
			_, err := batch.Commit(gctx)
			return err
		})
	}
	return g.Wait()
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// aggregate sums sessions and XP at or after since through run, which
// executes a query either directly or inside a transaction.
func (s *Store) aggregate(userID string, since time.Time, run func(firestore.Query) *firestore.DocumentIterator) (domain.DayAggregate, error) {
	var agg domain.DayAggregate

	sessions, err := collectSessions(run(s.client.Collection(colSessions).
		Where("userId", "==", userID).
		Where("timestamp", ">=", since)))
	if err != nil {
		return agg, err
	}
	for _, sess := range sessions {
		agg.Sessions++
		agg.Minutes += int64(sess.DurationMinutes)
	}

	iter := run(s.client.Collection(colXPTransactions).
		Where("userId", "==", userID).
		Where("timestamp", ">=", since))
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return agg, domain.WrapStore("aggregate xp", err)
		}
		var x domain.XPTransaction
		if err := snap.DataTo(&x); err != nil {
			return agg, domain.WrapStore("decode xp transaction", err)
		}
		agg.XP += x.Amount
	}
	return agg, nil
}

// ─── Unit of Work ───────────────────────────────────────────────────────────

type progressionTx struct {
	ctx    context.Context
	store  *Store
	tx     *firestore.Transaction
	user   *domain.UserProgression
	writes []func(*firestore.Transaction) error
}

func (t *progressionTx) User() *domain.UserProgression { return t.user }

func (t *progressionTx) Today(since time.Time) (domain.DayAggregate, error) {
	return t.store.aggregate(t.user.UserID, since, func(q firestore.Query) *firestore.DocumentIterator {
		return t.tx.Documents(q)
	})
}

func (t *progressionTx) set(ref *firestore.DocumentRef, data any) {
	t.writes = append(t.writes, func(tx *firestore.Transaction) error {
		return tx.Set(ref, data)
	})
}

func (t *progressionTx) InsertSession(s domain.Session) error {
	t.set(t.store.client.Collection(colSessions).Doc(s.ID), s)
	return nil
}

func (t *progressionTx) AppendXPTransaction(x domain.XPTransaction) error {
	t.set(t.store.client.Collection(colXPTransactions).Doc(x.ID), x)
	return nil
}

func (t *progressionTx) AppendBadgeEvent(e domain.BadgeEvent) error {
	t.set(t.store.client.Collection(colBadgeEvents).Doc(e.ID), e)
	return nil
}

func (t *progressionTx) GetQuest(questID string) (*domain.Quest, error) {
	snap, err := t.tx.Get(t.store.userRef(t.user.UserID).Collection(colQuests).Doc(questID))
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestNotFound, questID)
	}
	if err != nil {
		return nil, domain.WrapStore("get quest", err)
	}
	return decodeQuest(snap)
}

func (t *progressionTx) SaveQuest(q domain.Quest) error {
	t.set(t.store.userRef(t.user.UserID).Collection(colQuests).Doc(q.ID), q)
	return nil
}

// ─── Decoding ───────────────────────────────────────────────────────────────

func decodeUser(userID string, snap *firestore.DocumentSnapshot, err error) (*domain.UserProgression, error) {
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, domain.WrapStore("get user", err)
	}
	var u domain.UserProgression
	if err := snap.DataTo(&u); err != nil {
		return nil, domain.WrapStore("decode user", err)
	}
	if u.UserID == "" {
		u.UserID = userID
	}
	return &u, nil
}

func decodeQuest(snap *firestore.DocumentSnapshot) (*domain.Quest, error) {
	var q domain.Quest
	if err := snap.DataTo(&q); err != nil {
		return nil, domain.WrapStore("decode quest", err)
	}
	q.ID = snap.Ref.ID
	return &q, nil
}

func collectSessions(iter *firestore.DocumentIterator) ([]domain.Session, error) {
	defer iter.Stop()
	var sessions []domain.Session
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return sessions, nil
		}
		if err != nil {
			return nil, domain.WrapStore("list sessions", err)
		}
		var sess domain.Session
		if err := snap.DataTo(&sess); err != nil {
			return nil, domain.WrapStore("decode session", err)
		}
		sess.ID = snap.Ref.ID
		sessions = append(sessions, sess)
	}
}
