package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cvtailor/internal/config"
	"cvtailor/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrAllModelsExhausted means every rotation candidate was either cooling
// down or hit its quota during this request.
var ErrAllModelsExhausted = errors.New("all models exhausted or cooling down")

// Service rewrites CV text against a job description, rotating through the
// configured model candidates when quotas run out.
type Service struct {
	candidates []config.Candidate
	providers  map[string]config.ProviderConfig
	cooldowns  CooldownStore
	logger     *zap.Logger

	// invoke is swappable in tests; the default builds an eino chat model
	// for the candidate and generates once.
	invoke func(ctx context.Context, cand config.Candidate, system, user string) (string, error)

	mu          sync.Mutex
	modelsCache map[config.Candidate]model.ToolCallingChatModel
}

// NewService builds the rewrite service from app config.
func NewService(cfg *config.Config, cooldowns CooldownStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		candidates:  cfg.Rotation.Candidates,
		providers:   cfg.Providers,
		cooldowns:   cooldowns,
		logger:      logger,
		modelsCache: make(map[config.Candidate]model.ToolCallingChatModel),
	}
	s.invoke = s.generate
	return s
}

// Rewrite runs the rotation loop: skip cooling candidates, try the rest in
// priority order, record quota failures, and propagate everything else.
func (s *Service) Rewrite(ctx context.Context, cvText, jobDescription string) (*models.RewriteResult, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, errors.New("cv text is empty")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.New("job description is empty")
	}

	user := buildUserPrompt(cvText, jobDescription)

	var lastErr error
	for _, cand := range s.candidates {
		key := cand.Provider + "/" + cand.Model
		if s.cooldowns.InCooldown(ctx, key) {
			s.logger.Debug("skipping cooling model", zap.String("model", key))
			continue
		}

		reply, err := s.invoke(ctx, cand, systemPrompt, user)
		if err != nil {
			if !isQuotaError(err) {
				return nil, fmt.Errorf("model %s: %w", key, err)
			}
			s.logger.Warn("model quota exhausted, rotating",
				zap.String("model", key), zap.Error(err))
			s.cooldowns.MarkExhausted(ctx, key)
			lastErr = err
			continue
		}

		result := parseResponse(reply)
		result.Model = key
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrAllModelsExhausted, lastErr)
	}
	return nil, ErrAllModelsExhausted
}

func (s *Service) generate(ctx context.Context, cand config.Candidate, system, user string) (string, error) {
	chatModel, err := s.chatModel(ctx, cand)
	if err != nil {
		return "", err
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("model returned empty response")
	}
	return resp.Content, nil
}

func (s *Service) chatModel(ctx context.Context, cand config.Candidate) (model.ToolCallingChatModel, error) {
	s.mu.Lock()
	if m, ok := s.modelsCache[cand]; ok {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	m, err := s.newChatModel(ctx, cand)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.modelsCache[cand] = m
	s.mu.Unlock()
	return m, nil
}

func (s *Service) newChatModel(ctx context.Context, cand config.Candidate) (model.ToolCallingChatModel, error) {
	provCfg, ok := s.providers[cand.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", cand.Provider)
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key configured", cand.Provider)
	}
	modelName := cand.Model
	if modelName == "" {
		modelName = provCfg.Model
	}

	switch cand.Provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 8192,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cand.Provider)
	}
}
