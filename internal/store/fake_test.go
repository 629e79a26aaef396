package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// This file implements a hand-rolled in-memory fake satisfying the narrow
// querier/tx/beginner interfaces store.go needs, so CreateObject/
// GetObjectByID/GetJournalEntries/etc. can be exercised without a real
// Postgres instance.

type objectRow struct {
	ID           uuid.UUID
	ElectionID   *uuid.UUID
	Jurisdiction string
	ObjectType   string
	Payload      []byte
	Certificates []byte
	Signature    []byte
}

type journalRow struct {
	ID           uuid.UUID
	ObjectID     uuid.UUID
	ElectionID   *uuid.UUID
	Jurisdiction string
	ObjectType   string
	Action       string
	CreatedAt    time.Time
}

type labelRow struct {
	ID                 uuid.UUID
	ElectionID         uuid.UUID
	MachineID          uuid.UUID
	CommonAccessCardID string
	EncryptedHash      []byte
	OriginalPayload    []byte
}

type fakeDB struct {
	objects     map[uuid.UUID]objectRow
	objectOrder []uuid.UUID
	journal     []journalRow
	machines    map[string]uuid.UUID
	labels      []labelRow
	clock       time.Time
	failBegin   bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		objects:  make(map[uuid.UUID]objectRow),
		machines: make(map[string]uuid.UUID),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (db *fakeDB) nextTimestamp() time.Time {
	db.clock = db.clock.Add(time.Millisecond)
	return db.clock
}

func (db *fakeDB) Begin(ctx context.Context) (tx, error) {
	if db.failBegin {
		return nil, fmt.Errorf("begin failed")
	}
	return &fakeTx{db: db}, nil
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, fmt.Errorf("fakeDB.Exec: unrecognized statement: %s", sql)
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM objects") && strings.Contains(sql, "WHERE id = "):
		id := args[0].(uuid.UUID)
		o, ok := db.objects[id]
		if !ok {
			return &fakeRow{err: pgx.ErrNoRows}
		}
		return &fakeRow{values: []any{o.ID, o.ElectionID, o.Payload, o.Certificates, o.Signature}}
	case strings.Contains(sql, "FROM objects") && strings.Contains(sql, "election_id = $1"):
		electionID := args[0].(uuid.UUID)
		objectType := args[1].(string)
		for _, id := range db.objectOrder {
			o := db.objects[id]
			if o.ElectionID != nil && *o.ElectionID == electionID && o.ObjectType == objectType {
				return &fakeRow{values: []any{o.ID, o.ElectionID, o.Payload, o.Certificates, o.Signature}}
			}
		}
		return &fakeRow{err: pgx.ErrNoRows}
	case strings.Contains(sql, "FROM machines"):
		identifier := args[0].(string)
		if id, ok := db.machines[identifier]; ok {
			return &fakeRow{values: []any{id}}
		}
		return &fakeRow{err: pgx.ErrNoRows}
	default:
		return &fakeRow{err: fmt.Errorf("fakeDB.QueryRow: unrecognized statement: %s", sql)}
	}
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "FROM journal_entries"):
		idx := 0
		var sinceCreatedAt *time.Time
		var jurisdiction *string
		if strings.Contains(sql, "created_at > (SELECT") {
			sinceID := args[idx].(uuid.UUID)
			idx++
			for _, j := range db.journal {
				if j.ID == sinceID {
					t := j.CreatedAt
					sinceCreatedAt = &t
					break
				}
			}
		}
		if strings.Contains(sql, "jurisdiction = $") {
			j := args[idx].(string)
			jurisdiction = &j
		}
		var rows [][]any
		for _, j := range db.journal {
			if sinceCreatedAt != nil && !j.CreatedAt.After(*sinceCreatedAt) {
				continue
			}
			if jurisdiction != nil && j.Jurisdiction != *jurisdiction {
				continue
			}
			rows = append(rows, []any{j.ID, j.ObjectID, j.ElectionID, j.Jurisdiction, j.ObjectType, j.Action, j.CreatedAt})
		}
		return &fakeRows{rows: rows}, nil
	case strings.Contains(sql, "FROM objects"):
		objectType := args[0].(string)
		var electionID *uuid.UUID
		if len(args) > 1 {
			id := args[1].(uuid.UUID)
			electionID = &id
		}
		var rows [][]any
		for _, id := range db.objectOrder {
			o := db.objects[id]
			if o.ObjectType != objectType {
				continue
			}
			if electionID != nil && (o.ElectionID == nil || *o.ElectionID != *electionID) {
				continue
			}
			rows = append(rows, []any{o.ID})
		}
		return &fakeRows{rows: rows}, nil
	default:
		return nil, fmt.Errorf("fakeDB.Query: unrecognized statement: %s", sql)
	}
}

type fakeTx struct {
	db             *fakeDB
	pendingObjects []objectRow
	pendingJournal []journalRow
	pendingLabels  []labelRow
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO objects"):
		t.pendingObjects = append(t.pendingObjects, objectRow{
			ID:           args[0].(uuid.UUID),
			ElectionID:   args[1].(*uuid.UUID),
			Jurisdiction: args[2].(string),
			ObjectType:   args[3].(string),
			Payload:      args[4].([]byte),
			Certificates: args[5].([]byte),
			Signature:    args[6].([]byte),
		})
	case strings.Contains(sql, "INSERT INTO scanned_mailing_label_codes"):
		t.pendingLabels = append(t.pendingLabels, labelRow{
			ID:                 args[0].(uuid.UUID),
			ElectionID:         args[1].(uuid.UUID),
			MachineID:          args[2].(uuid.UUID),
			CommonAccessCardID: args[3].(string),
			EncryptedHash:      args[4].([]byte),
			OriginalPayload:    args[5].([]byte),
		})
	default:
		return pgconn.CommandTag{}, fmt.Errorf("fakeTx.Exec: unrecognized statement: %s", sql)
	}
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.Contains(sql, "FROM machines"):
		identifier := args[0].(string)
		if id, ok := t.db.machines[identifier]; ok {
			return &fakeRow{values: []any{id}}
		}
		return &fakeRow{err: pgx.ErrNoRows}
	case strings.Contains(sql, "INSERT INTO journal_entries"):
		createdAt := t.db.nextTimestamp()
		t.pendingJournal = append(t.pendingJournal, journalRow{
			ID:           args[0].(uuid.UUID),
			ObjectID:     args[1].(uuid.UUID),
			ElectionID:   args[2].(*uuid.UUID),
			Jurisdiction: args[3].(string),
			ObjectType:   args[4].(string),
			Action:       "create",
			CreatedAt:    createdAt,
		})
		return &fakeRow{values: []any{createdAt}}
	default:
		return &fakeRow{err: fmt.Errorf("fakeTx.QueryRow: unrecognized statement: %s", sql)}
	}
}

func (t *fakeTx) Commit(ctx context.Context) error {
	for _, o := range t.pendingObjects {
		if _, exists := t.db.objects[o.ID]; !exists {
			t.db.objectOrder = append(t.db.objectOrder, o.ID)
		}
		t.db.objects[o.ID] = o
	}
	t.db.journal = append(t.db.journal, t.pendingJournal...)
	t.db.labels = append(t.db.labels, t.pendingLabels...)
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("fakeRow: dest/value count mismatch: %d vs %d", len(dest), len(r.values))
	}
	for i, d := range dest {
		if err := scanInto(d, r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                 { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                               { return nil }
func (r *fakeRows) RawValues() [][]byte                           { return nil }

func (r *fakeRows) Next() bool {
	if r.idx < len(r.rows) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("fakeRows: dest/value count mismatch: %d vs %d", len(dest), len(row))
	}
	for i, d := range dest {
		if err := scanInto(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx-1], nil
}

// scanInto copies value into dest, supporting only the destination types
// this package's queries actually scan into.
func scanInto(dest any, value any) error {
	switch d := dest.(type) {
	case *uuid.UUID:
		v, ok := value.(uuid.UUID)
		if !ok {
			return fmt.Errorf("scanInto: want uuid.UUID, got %T", value)
		}
		*d = v
	case **uuid.UUID:
		if value == nil {
			*d = nil
			return nil
		}
		if v, ok := value.(*uuid.UUID); ok {
			*d = v
			return nil
		}
		if v, ok := value.(uuid.UUID); ok {
			*d = &v
			return nil
		}
		return fmt.Errorf("scanInto: want *uuid.UUID, got %T", value)
	case *string:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("scanInto: want string, got %T", value)
		}
		*d = v
	case *time.Time:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("scanInto: want time.Time, got %T", value)
		}
		*d = v
	case *[]byte:
		v, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("scanInto: want []byte, got %T", value)
		}
		*d = v
	default:
		return fmt.Errorf("scanInto: unsupported dest type %T", dest)
	}
	return nil
}
