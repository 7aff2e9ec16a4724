package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/assessli/companion/internal/identity"
	"github.com/assessli/companion/internal/model"
	"github.com/assessli/companion/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// EnsureSchema must be idempotent and preserve existing rows.
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	// Profile round-trip, meta included.
	base := time.Now().UTC().Truncate(time.Millisecond)
	p := &model.Profile{
		ID:    identity.NewID(),
		Name:  "Ava",
		Email: "a@x.com",
		Phone: "555-0100",
		Meta: model.ProfileMeta{
			Bio:              "loves hiking",
			AllowTechInfo:    true,
			SensitiveDataAck: true,
			Extra:            map[string]interface{}{"favorite_color": "green"},
		},
		CreatedAt: base,
	}
	if _, err := s.Profiles().Put(ctx, p); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}
	got, err := s.Profiles().Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != p.Name || got.Email != p.Email || got.Phone != p.Phone {
		t.Fatalf("GetProfile mismatch: got=%+v want=%+v", got, p)
	}
	if got.Meta.Bio != "loves hiking" || !got.Meta.AllowTechInfo || !got.Meta.SensitiveDataAck {
		t.Fatalf("GetProfile meta mismatch: %+v", got.Meta)
	}
	if got.Meta.Extra["favorite_color"] != "green" {
		t.Fatalf("GetProfile meta extra lost: %+v", got.Meta.Extra)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("GetProfile created_at mismatch: got=%v want=%v", got.CreatedAt, p.CreatedAt)
	}

	// Upsert fully replaces the prior record.
	p2 := *p
	p2.Name = "Ava Jones"
	p2.Meta = model.ProfileMeta{Bio: "loves climbing"}
	if _, err := s.Profiles().Put(ctx, &p2); err != nil {
		t.Fatalf("PutProfile upsert: %v", err)
	}
	got, err = s.Profiles().Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile after upsert: %v", err)
	}
	if got.Name != "Ava Jones" || got.Meta.Bio != "loves climbing" || got.Meta.AllowTechInfo {
		t.Fatalf("upsert did not replace: %+v meta=%+v", got, got.Meta)
	}

	// Absence is ErrNotFound, not a storage error.
	if _, err := s.Profiles().Get(ctx, "no-such-id"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetProfile absent: want ErrNotFound, got %v", err)
	}

	// EnsureSchema again must not duplicate or erase.
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema repeat: %v", err)
	}
	if _, err := s.Profiles().Get(ctx, p.ID); err != nil {
		t.Fatalf("GetProfile after EnsureSchema repeat: %v", err)
	}

	// ListProfiles orders by created_at descending.
	older := &model.Profile{ID: identity.NewID(), Name: "Ben", CreatedAt: base.Add(-2 * time.Hour)}
	newest := &model.Profile{ID: identity.NewID(), Name: "Cleo", CreatedAt: base.Add(time.Hour)}
	for _, pr := range []*model.Profile{older, newest} {
		if _, err := s.Profiles().Put(ctx, pr); err != nil {
			t.Fatalf("PutProfile %s: %v", pr.Name, err)
		}
	}
	lst, err := s.Profiles().List(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	// The store may hold rows from earlier runs; check relative order
	// of the three rows this suite wrote.
	pos := map[string]int{}
	for i, pr := range lst {
		pos[pr.ID] = i
	}
	for _, id := range []string{newest.ID, p.ID, older.ID} {
		if _, ok := pos[id]; !ok {
			t.Fatalf("ListProfiles missing id %s", id)
		}
	}
	if !(pos[newest.ID] < pos[p.ID] && pos[p.ID] < pos[older.ID]) {
		t.Fatalf("ListProfiles order: newest=%d mid=%d oldest=%d", pos[newest.ID], pos[p.ID], pos[older.ID])
	}

	// Messages: append and list ordering.
	mkMsg := func(role, body string, ts time.Time, md model.MessageMetadata) *model.Message {
		return &model.Message{ID: identity.NewID(), UserID: p.ID, Role: role, Body: body, Metadata: md, TS: ts}
	}
	m1 := mkMsg(model.RoleUser, "hello", base, model.MessageMetadata{Tech: &model.TechInfo{IP: "203.0.113.9"}})
	m2 := mkMsg(model.RoleAssistant, "hi there", base.Add(time.Second), model.MessageMetadata{GeneratedBy: model.GeneratedByMock})
	m3 := mkMsg(model.RoleUser, "more", base.Add(2*time.Second), model.MessageMetadata{})
	for _, msg := range []*model.Message{m1, m2, m3} {
		if _, err := s.Messages().Create(ctx, msg); err != nil {
			t.Fatalf("CreateMessage %q: %v", msg.Body, err)
		}
	}

	recent, err := s.Messages().ListRecent(ctx, 50)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	mpos := map[string]int{}
	byID := map[string]*model.Message{}
	for i, msg := range recent {
		mpos[msg.ID] = i
		byID[msg.ID] = msg
	}
	for _, msg := range []*model.Message{m1, m2, m3} {
		if _, ok := mpos[msg.ID]; !ok {
			t.Fatalf("ListRecent missing message %q", msg.Body)
		}
	}
	if !(mpos[m3.ID] < mpos[m2.ID] && mpos[m2.ID] < mpos[m1.ID]) {
		t.Fatalf("ListRecent order: got %d,%d,%d", mpos[m3.ID], mpos[m2.ID], mpos[m1.ID])
	}
	if byID[m2.ID].Metadata.GeneratedBy != model.GeneratedByMock {
		t.Fatalf("ListRecent metadata lost: %+v", byID[m2.ID].Metadata)
	}

	if capped, err := s.Messages().ListRecent(ctx, 1); err != nil || len(capped) != 1 {
		t.Fatalf("ListRecent limit: n=%d err=%v", len(capped), err)
	}

	conv, err := s.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: p.ID})
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(conv) != 3 || conv[0].ID != m1.ID || conv[2].ID != m3.ID {
		t.Fatalf("ListByProfile order: n=%d", len(conv))
	}
	if conv[0].Metadata.Tech == nil || conv[0].Metadata.Tech.IP != "203.0.113.9" {
		t.Fatalf("ListByProfile tech metadata lost: %+v", conv[0].Metadata)
	}
}
