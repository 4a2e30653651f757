package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := Open(context.Background(), Config{DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := Migrate(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestStudents(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewStudentRepository(db, nil)

	n, err := repo.UpsertStudents(ctx, []entity.RosterEntry{
		{RUN: "11111111-1", Nombres: "Ana María", Apellidos: "Díaz Soto", Carrera: "Derecho", Modalidad: "Diurno"},
		{RUN: "22222222-2", Nombres: "Luis", Apellidos: "Rojas", Carrera: "Ingeniería", Modalidad: "Vespertino"},
	})
	if err != nil || n != 2 {
		t.Fatalf("upsert = %d, %v", n, err)
	}

	got, err := repo.Lookup(ctx, "11111111-1")
	if err != nil || len(got) != 1 || got[0].Nombres != "Ana María" {
		t.Fatalf("lookup = %+v, %v", got, err)
	}
	if got, _ := repo.Lookup(ctx, "12345678-5"); len(got) != 0 {
		t.Fatalf("unknown run returned %+v", got)
	}

	// re-import updates in place
	if _, err := repo.UpsertStudents(ctx, []entity.RosterEntry{{RUN: "22222222-2", Nombres: "Luis", Apellidos: "Rojas", Carrera: "Medicina"}}); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.Lookup(ctx, "22222222-2")
	if len(got) != 1 || got[0].Carrera != "Medicina" {
		t.Fatalf("after update = %+v", got)
	}
	if c, err := repo.Count(ctx); err != nil || c != 2 {
		t.Fatalf("count = %d, %v", c, err)
	}

	hits, err := repo.SearchByName(ctx, "luis ROJAS", 5)
	if err != nil || len(hits) != 1 || hits[0].RUN != "22222222-2" {
		t.Fatalf("search = %+v, %v", hits, err)
	}
	if hits, _ := repo.SearchByName(ctx, "de la", 5); hits != nil {
		t.Fatalf("short words should not search: %+v", hits)
	}
}

func TestBatchesAndDocuments(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	batches := NewBatchRepository(db, nil)
	docs := NewDocumentRepository(db, nil)
	students := NewStudentRepository(db, nil)

	hash := []byte{0xde, 0xad, 0xbe, 0xef}
	b, existed, err := batches.UpsertByHash(ctx, "/inbox/lote.pdf", "lote.pdf", 1234, hash, time.Now())
	if err != nil || existed {
		t.Fatalf("first upsert: existed=%v err=%v", existed, err)
	}
	again, existed, err := batches.UpsertByHash(ctx, "/inbox/copia.pdf", "copia.pdf", 1234, hash, time.Now())
	if err != nil || !existed || again.ID != b.ID {
		t.Fatalf("dedup failed: %+v existed=%v err=%v", again, existed, err)
	}

	if err := batches.Start(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	out := entity.BatchOutcome{TotalPages: 5, Matched: 1, Unmatched: 1, Written: 1}
	if err := batches.Finish(ctx, b.ID, out); err != nil {
		t.Fatal(err)
	}
	row, err := batches.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != constants.BatchDone || row.Pages != 5 || row.Written != 1 || row.FinishedAt == nil {
		t.Fatalf("batch row = %+v", row)
	}

	if err := batches.Fail(ctx, uuid.New(), "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("fail unknown batch: %v", err)
	}
	if _, err := batches.GetByHash(ctx, []byte{1}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("get unknown hash: %v", err)
	}

	if _, err := students.UpsertStudents(ctx, []entity.RosterEntry{{RUN: "11111111-1", Nombres: "Ana", Apellidos: "Díaz"}}); err != nil {
		t.Fatal(err)
	}
	recorded, err := docs.RecordIntents(ctx, &b.ID, []entity.DocumentIntent{
		{StudentRUN: "11111111-1", DocumentType: constants.Biblioteca, Path: "/exp/111111111/biblioteca_1.pdf", FirstPage: 0, LastPage: 2},
		{StudentRUN: "11111111-1", DocumentType: constants.Acta, Path: "/exp/111111111/acta_1.pdf", FirstPage: 3, LastPage: 3},
	})
	if err != nil || len(recorded) != 2 {
		t.Fatalf("record = %d, %v", len(recorded), err)
	}
	listed, err := docs.ListByStudent(ctx, "11111111-1")
	if err != nil || len(listed) != 2 {
		t.Fatalf("list = %+v, %v", listed, err)
	}
	for _, d := range listed {
		if d.Validated || d.BatchID == nil || *d.BatchID != b.ID {
			t.Fatalf("document row = %+v", d)
		}
	}

	// documents require a roster student
	_, err = docs.RecordIntents(ctx, nil, []entity.DocumentIntent{
		{StudentRUN: "99999999-9", DocumentType: constants.Acta, Path: "/exp/x.pdf"},
	})
	if err == nil {
		t.Fatal("foreign key not enforced")
	}
}

func TestSchemaValidators(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	students := NewStudentRepository(db, nil)
	docs := NewDocumentRepository(db, nil)

	if _, err := students.UpsertStudents(ctx, []entity.RosterEntry{{RUN: "11111111-1", Nombres: "Ana", Apellidos: "Díaz"}}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		tipo    constants.DocumentType
		wantErr bool
	}{
		{"known type", constants.Financiero, false},
		{"unknown bucket", constants.Unknown, false},
		{"free text", constants.DocumentType("certificado"), true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := docs.RecordIntents(ctx, nil, []entity.DocumentIntent{
				{StudentRUN: "11111111-1", DocumentType: tt.tipo, Path: fmt.Sprintf("/exp/111111111/doc_%d.pdf", i)},
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("RecordIntents(%q) err = %v, wantErr %v", tt.tipo, err, tt.wantErr)
			}
		})
	}

	// one bad row rejects the whole bulk insert
	_, err := docs.RecordIntents(ctx, nil, []entity.DocumentIntent{
		{StudentRUN: "11111111-1", DocumentType: constants.Acta, Path: "/exp/111111111/acta_9.pdf"},
		{StudentRUN: "11111111-1", DocumentType: "", Path: "/exp/111111111/x.pdf"},
	})
	if err == nil {
		t.Fatal("empty tipo accepted")
	}
	listed, _ := docs.ListByStudent(ctx, "11111111-1")
	for _, d := range listed {
		if d.Path == "/exp/111111111/acta_9.pdf" {
			t.Fatal("partial bulk insert persisted")
		}
	}
}
