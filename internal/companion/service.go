// Package companion orchestrates the chat pipeline: resolve the active
// profile, persist the user's message, obtain a reply (external model
// or local generator), persist the reply, and return it.
package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/assessli/companion/internal/identity"
	"github.com/assessli/companion/internal/llm"
	"github.com/assessli/companion/internal/model"
	"github.com/assessli/companion/internal/reply"
	"github.com/assessli/companion/internal/session"
	"github.com/assessli/companion/internal/store"
	"github.com/assessli/companion/internal/techinfo"
)

const defaultRecentLimit = 50

// Service is the session pipeline. The external model and tech-info
// provider are optional; without them every turn uses the local
// generator and an empty technical snapshot.
type Service struct {
	store    store.Store
	sessions *session.Store
	external llm.Completer
	tech     techinfo.Provider
	log      zerolog.Logger
}

func NewService(st store.Store, sessions *session.Store, external llm.Completer, tech techinfo.Provider, log zerolog.Logger) *Service {
	return &Service{store: st, sessions: sessions, external: external, tech: tech, log: log}
}

// RegisterRequest carries the fields of the registration form.
type RegisterRequest struct {
	Name             string
	Email            string
	Phone            string
	Bio              string
	AllowTechInfo    bool
	SensitiveDataAck bool
}

// RegisterProfile creates a profile, persists it, and binds it to the
// session. Name and email are required.
func (s *Service) RegisterProfile(ctx context.Context, sessionID string, req RegisterRequest) (*model.Profile, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("%w: name and email are required", model.ErrValidation)
	}
	p := &model.Profile{
		ID:    identity.NewID(),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Meta: model.ProfileMeta{
			Bio:              req.Bio,
			AllowTechInfo:    req.AllowTechInfo,
			SensitiveDataAck: req.SensitiveDataAck,
		},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.store.Profiles().Put(ctx, p); err != nil {
		return nil, err
	}
	s.sessions.Bind(sessionID, p.ID)
	return p, nil
}

// ResolveProfile returns the profile bound to the session, or
// model.ErrNotFound when the session has no (live) binding. A binding
// whose profile row has disappeared is cleared.
func (s *Service) ResolveProfile(ctx context.Context, sessionID string) (*model.Profile, error) {
	id, ok := s.sessions.Resolve(sessionID)
	if !ok {
		return nil, model.ErrNotFound
	}
	p, err := s.store.Profiles().Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		s.sessions.Clear(sessionID)
		return nil, model.ErrNotFound
	}
	return p, err
}

// EndSession clears the session's profile binding.
func (s *Service) EndSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

// TurnRequest describes one chat turn.
type TurnRequest struct {
	Profile *model.Profile
	Input   string
	// Persist controls whether the user message is written to the
	// conversation log.
	Persist bool
	// ExternalAPIKey, when set, routes the turn through the external
	// model boundary with local fallback. The key is used for the one
	// call and never persisted.
	ExternalAPIKey string
}

// TurnResult is the produced reply plus non-fatal warnings collected
// along the way.
type TurnResult struct {
	Text        string
	GeneratedBy string
	Warnings    []string
}

// SubmitTurn runs one chat turn. The user message is persisted
// (attempted) strictly before the assistant message; persist failures
// are warnings, not errors, so a reply is always produced.
func (s *Service) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.Profile == nil {
		return nil, fmt.Errorf("%w: profile is required", model.ErrValidation)
	}
	if strings.TrimSpace(req.Input) == "" {
		return nil, fmt.Errorf("%w: input text is empty", model.ErrValidation)
	}

	res := &TurnResult{}

	if req.Persist {
		tech := &model.TechInfo{}
		if req.Profile.Meta.AllowTechInfo && s.tech != nil {
			if snap := s.tech.Lookup(ctx); snap != nil {
				tech.IP = snap.IP
			}
		}
		userMsg := &model.Message{
			ID:       identity.NewID(),
			UserID:   req.Profile.ID,
			Role:     model.RoleUser,
			Body:     req.Input,
			Metadata: model.MessageMetadata{Tech: tech},
			TS:       time.Now().UTC(),
		}
		if _, err := s.store.Messages().Create(ctx, userMsg); err != nil {
			s.warn(res, err, "user message not persisted")
		}
	}

	res.Text, res.GeneratedBy = s.generate(ctx, req)

	assistantMsg := &model.Message{
		ID:       identity.NewID(),
		UserID:   req.Profile.ID,
		Role:     model.RoleAssistant,
		Body:     res.Text,
		Metadata: model.MessageMetadata{GeneratedBy: res.GeneratedBy},
		TS:       time.Now().UTC(),
	}
	if _, err := s.store.Messages().Create(ctx, assistantMsg); err != nil {
		s.warn(res, err, "assistant message not persisted")
	}

	return res, nil
}

// generate produces the reply text. The local generator is the
// guaranteed path: it is pure, so a turn can only fail before
// generation, never during it.
func (s *Service) generate(ctx context.Context, req TurnRequest) (text, generatedBy string) {
	if req.ExternalAPIKey != "" && s.external != nil {
		out, err := s.external.Complete(ctx, req.ExternalAPIKey, req.Profile, req.Input)
		if err == nil {
			return out, model.GeneratedByExternal
		}
		s.log.Warn().Err(err).Str("user_id", req.Profile.ID).Msg("external model failed, using local generator")
	}
	return reply.Generate(req.Profile, req.Input), model.GeneratedByMock
}

func (s *Service) warn(res *TurnResult, err error, msg string) {
	s.log.Warn().Err(err).Msg(msg)
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// GetProfile looks up a profile by id.
func (s *Service) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	return s.store.Profiles().Get(ctx, id)
}

// ListProfiles returns all profiles, most recently created first.
func (s *Service) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	return s.store.Profiles().List(ctx)
}

// ListRecentMessages returns up to limit messages across all profiles,
// newest first.
func (s *Service) ListRecentMessages(ctx context.Context, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.store.Messages().ListRecent(ctx, limit)
}

// ListConversation returns a profile's messages in chronological order.
func (s *Service) ListConversation(ctx context.Context, userID string, limit int) ([]*model.Message, error) {
	return s.store.Messages().ListByProfile(ctx, model.ListMessagesRequest{UserID: userID, Limit: limit})
}
