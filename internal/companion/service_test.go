package companion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/assessli/companion/internal/llm"
	"github.com/assessli/companion/internal/model"
	"github.com/assessli/companion/internal/reply"
	"github.com/assessli/companion/internal/session"
	"github.com/assessli/companion/internal/store"
	"github.com/assessli/companion/internal/store/sqlite"
	"github.com/assessli/companion/internal/techinfo"
)

type scriptedModel struct {
	text string
	err  error
}

func (m *scriptedModel) Complete(ctx context.Context, apiKey string, p *model.Profile, input string) (string, error) {
	return m.text, m.err
}

type staticTech struct{ ip string }

func (t *staticTech) Lookup(ctx context.Context) *techinfo.Snapshot {
	return &techinfo.Snapshot{IP: t.ip}
}

func newTestService(t *testing.T, external *scriptedModel, tech techinfo.Provider) (*Service, store.Store) {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "companion.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	// Assign through the interface type so a nil *scriptedModel stays a
	// nil interface inside the service.
	var ext llm.Completer
	if external != nil {
		ext = external
	}
	svc := NewService(st, session.NewStore(), ext, tech, zerolog.Nop())
	return svc, st
}

func registerAva(t *testing.T, svc *Service, sessionID string) *model.Profile {
	t.Helper()
	p, err := svc.RegisterProfile(context.Background(), sessionID, RegisterRequest{
		Name:          "Ava",
		Email:         "a@x.com",
		Bio:           "loves hiking",
		AllowTechInfo: true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return p
}

func TestRegisterProfile_RequiresNameAndEmail(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	_, err := svc.RegisterProfile(context.Background(), "s1", RegisterRequest{Email: "a@x.com"})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation without name, got %v", err)
	}
	_, err = svc.RegisterProfile(context.Background(), "s1", RegisterRequest{Name: "Ava"})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation without email, got %v", err)
	}
}

func TestRegisterAndResolveProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil, nil)

	p := registerAva(t, svc, "s1")
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("incomplete profile: %+v", p)
	}

	got, err := svc.ResolveProfile(ctx, "s1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != p.ID || got.Meta.Bio != "loves hiking" {
		t.Fatalf("resolved wrong profile: %+v", got)
	}

	// Unbound session routes to registration.
	if _, err := svc.ResolveProfile(ctx, "s2"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unbound session, got %v", err)
	}

	svc.EndSession("s1")
	if _, err := svc.ResolveProfile(ctx, "s1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want ErrNotFound after EndSession, got %v", err)
	}
}

func TestSubmitTurn_LocalPath(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil, &staticTech{ip: "203.0.113.9"})
	p := registerAva(t, svc, "s1")

	res, err := svc.SubmitTurn(ctx, TurnRequest{Profile: p, Input: "hello", Persist: true})
	if err != nil {
		t.Fatalf("submit turn: %v", err)
	}
	if res.Text == "" {
		t.Fatal("empty reply text")
	}
	if res.GeneratedBy != model.GeneratedByMock {
		t.Fatalf("want mock path, got %q", res.GeneratedBy)
	}
	for _, want := range []string{"Hi Ava", "loves hiking", "> hello"} {
		if !strings.Contains(res.Text, want) {
			t.Fatalf("reply missing %q:\n%s", want, res.Text)
		}
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}

	// Exactly one user and one assistant message, user first.
	conv, err := st.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: p.ID})
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(conv) != 2 {
		t.Fatalf("want 2 messages, got %d", len(conv))
	}
	if conv[0].Role != model.RoleUser || conv[1].Role != model.RoleAssistant {
		t.Fatalf("role order: %s, %s", conv[0].Role, conv[1].Role)
	}
	if conv[0].Metadata.Tech == nil || conv[0].Metadata.Tech.IP != "203.0.113.9" {
		t.Fatalf("user message tech snapshot: %+v", conv[0].Metadata)
	}
	if conv[1].Metadata.GeneratedBy != model.GeneratedByMock {
		t.Fatalf("assistant generated_by: %+v", conv[1].Metadata)
	}
	if conv[1].Body != res.Text {
		t.Fatal("persisted assistant text differs from returned text")
	}
}

func TestSubmitTurn_NoPersist(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil, nil)
	p := registerAva(t, svc, "s1")

	res, err := svc.SubmitTurn(ctx, TurnRequest{Profile: p, Input: "hello", Persist: false})
	if err != nil || res.Text == "" {
		t.Fatalf("submit turn: res=%+v err=%v", res, err)
	}

	// Only the assistant message is logged.
	conv, err := st.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: p.ID})
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(conv) != 1 || conv[0].Role != model.RoleAssistant {
		t.Fatalf("want single assistant message, got %d", len(conv))
	}
}

func TestSubmitTurn_TechInfoGatedByConsent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil, &staticTech{ip: "203.0.113.9"})

	p, err := svc.RegisterProfile(ctx, "s1", RegisterRequest{Name: "Ben", Email: "b@x.com", AllowTechInfo: false})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.SubmitTurn(ctx, TurnRequest{Profile: p, Input: "hi", Persist: true}); err != nil {
		t.Fatalf("submit turn: %v", err)
	}

	conv, err := st.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: p.ID})
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	// The snapshot key is present but empty when consent is withheld.
	if conv[0].Metadata.Tech == nil || conv[0].Metadata.Tech.IP != "" {
		t.Fatalf("tech snapshot should be empty without consent: %+v", conv[0].Metadata.Tech)
	}
}

func TestSubmitTurn_ExternalPath(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &scriptedModel{text: "external reply"}, nil)
	p := registerAva(t, svc, "s1")

	res, err := svc.SubmitTurn(ctx, TurnRequest{Profile: p, Input: "hello", Persist: true, ExternalAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("submit turn: %v", err)
	}
	if res.Text != "external reply" || res.GeneratedBy != model.GeneratedByExternal {
		t.Fatalf("external path not taken: %+v", res)
	}

	conv, _ := st.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: p.ID})
	if conv[1].Metadata.GeneratedBy != model.GeneratedByExternal {
		t.Fatalf("assistant generated_by: %+v", conv[1].Metadata)
	}
}

func TestSubmitTurn_ExternalFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &scriptedModel{err: errors.New("timeout")}, nil)
	p := registerAva(t, svc, "s1")

	res, err := svc.SubmitTurn(ctx, TurnRequest{Profile: p, Input: "hello", Persist: true, ExternalAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("submit turn: %v", err)
	}
	if res.GeneratedBy != model.GeneratedByMock {
		t.Fatalf("fallback not taken: %+v", res)
	}
	// The fallback output matches the no-key path exactly.
	if want := reply.Generate(p, "hello"); res.Text != want {
		t.Fatalf("fallback text differs from local generator:\n%s\n---\n%s", res.Text, want)
	}

	conv, _ := st.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: p.ID})
	if conv[1].Metadata.GeneratedBy != model.GeneratedByMock {
		t.Fatalf("assistant generated_by after fallback: %+v", conv[1].Metadata)
	}
}

func TestSubmitTurn_ValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	p := registerAva(t, svc, "s1")

	if _, err := svc.SubmitTurn(context.Background(), TurnRequest{Profile: p, Input: "   "}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation for blank input, got %v", err)
	}
	if _, err := svc.SubmitTurn(context.Background(), TurnRequest{Input: "hi"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("want ErrValidation for missing profile, got %v", err)
	}
}

// failingMessages wraps a store so message writes always fail.
type failingMessages struct{ store.Store }

type brokenMessages struct{ store.Messages }

func (f *failingMessages) Messages() store.Messages {
	return &brokenMessages{Messages: f.Store.Messages()}
}

func (b *brokenMessages) Create(ctx context.Context, m *model.Message) (*model.Message, error) {
	return nil, model.NewStorageError("create message", fmt.Errorf("disk full"))
}

func TestSubmitTurn_PersistFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, nil, nil)
	p := registerAva(t, svc, "s1")

	broken := NewService(&failingMessages{Store: st}, session.NewStore(), nil, nil, zerolog.Nop())
	res, err := broken.SubmitTurn(ctx, TurnRequest{Profile: p, Input: "hello", Persist: true})
	if err != nil {
		t.Fatalf("turn must not fail on persist errors: %v", err)
	}
	if res.Text == "" {
		t.Fatal("empty reply despite guaranteed local generation")
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("want 2 persist warnings, got %v", res.Warnings)
	}
}
