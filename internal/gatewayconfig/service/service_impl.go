package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/gatewayconfig/domain"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Cfg     config.Config
	Holder  *config.GatewayConfigHolder
	Factory gateway.Factory
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	genID   *snowflake.Node
	encKey  []byte
	holder  *config.GatewayConfigHolder
	factory gateway.Factory
}

func New(p Params) (domain.Service, error) {
	key, err := deriveKey(p.Cfg.GatewayConfigSecret)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("gatewayconfig.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		encKey:  key,
		holder:  p.Holder,
		factory: p.Factory,
	}, nil
}

func (s *Service) UpsertConfig(ctx context.Context, tenantID uuid.UUID, values map[string]any) (*domain.ConfigSummary, error) {
	const op = "gatewayconfig.upsert"
	normalized, err := normalizeConfig(values)
	if err != nil {
		return nil, payerr.New(payerr.KindValidation, op, err.Error(), domain.ErrInvalidConfig)
	}
	if _, err := s.holder.Get().Overlay(normalized).Settings(); err != nil {
		return nil, payerr.New(payerr.KindValidation, op, err.Error(), domain.ErrInvalidConfig)
	}

	encrypted, err := encryptConfig(s.encKey, normalized)
	if err != nil {
		return nil, payerr.New(payerr.KindValidation, op, "cannot store tenant gateway config", err)
	}

	existing, err := s.repo.Find(ctx, s.db, tenantID)
	if err != nil {
		return nil, payerr.Persistence(op, "load tenant config", err)
	}

	now := time.Now().UTC()
	cfg := domain.TenantConfig{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Config:    encrypted,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		cfg.ID = existing.ID
		cfg.IsActive = existing.IsActive
		cfg.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.Upsert(ctx, s.db, &cfg); err != nil {
		return nil, payerr.Persistence(op, "store tenant config", err)
	}

	action := "rotated"
	if existing == nil {
		action = "created"
	}
	s.log.Info("tenant gateway config "+action,
		zap.String("tenant_id", tenantID.String()),
		zap.Strings("keys", keysOf(normalized)),
	)

	return &domain.ConfigSummary{
		TenantID:   tenantID,
		IsActive:   cfg.IsActive,
		Configured: true,
		Keys:       keysOf(normalized),
	}, nil
}

func (s *Service) SetActive(ctx context.Context, tenantID uuid.UUID, isActive bool) (*domain.ConfigSummary, error) {
	const op = "gatewayconfig.set_active"
	updated, err := s.repo.UpdateStatus(ctx, s.db, tenantID, isActive, time.Now().UTC())
	if err != nil {
		return nil, payerr.Persistence(op, "update tenant config", err)
	}
	if !updated {
		return nil, payerr.New(payerr.KindNotFound, op, "tenant has no gateway config", domain.ErrNotFound)
	}
	return &domain.ConfigSummary{TenantID: tenantID, IsActive: isActive, Configured: true}, nil
}

// Resolve overlays the tenant's active overrides on the global defaults.
func (s *Service) Resolve(ctx context.Context, tenantID uuid.UUID) (config.GatewaySettings, error) {
	const op = "gatewayconfig.resolve"
	raw := s.holder.Get()

	stored, err := s.repo.Find(ctx, s.db, tenantID)
	if err != nil {
		return config.GatewaySettings{}, payerr.Persistence(op, "load tenant config", err)
	}
	if stored != nil && stored.IsActive {
		values, err := decryptConfig(s.encKey, stored.Config)
		if err != nil {
			return config.GatewaySettings{}, payerr.Persistence(op, "tenant gateway config is unreadable", err)
		}
		raw = raw.Overlay(values)
	}

	settings, err := raw.Settings()
	if err != nil {
		return config.GatewaySettings{}, payerr.New(payerr.KindValidation, op, err.Error(), domain.ErrInvalidConfig)
	}
	return settings, nil
}

func (s *Service) ClientFor(ctx context.Context, tenantID uuid.UUID) (gateway.Client, config.GatewaySettings, error) {
	settings, err := s.Resolve(ctx, tenantID)
	if err != nil {
		return nil, config.GatewaySettings{}, err
	}
	client, err := s.factory.NewClient(settings)
	if err != nil {
		return nil, config.GatewaySettings{}, payerr.New(payerr.KindValidation, "gatewayconfig.client", "gateway is not configured for tenant", err)
	}
	return client, settings, nil
}

// normalizeConfig trims values and rejects keys the gateway does not know.
func normalizeConfig(values map[string]any) (map[string]any, error) {
	known := map[string]struct{}{}
	for _, key := range config.GatewayKeys() {
		known[key] = struct{}{}
	}

	normalized := make(map[string]any, len(values))
	for key, value := range values {
		trimmedKey := strings.ToLower(strings.TrimSpace(key))
		if trimmedKey == "" || value == nil {
			continue
		}
		if _, ok := known[trimmedKey]; !ok {
			return nil, &unknownKeyError{key: trimmedKey}
		}
		if str, ok := value.(string); ok {
			str = strings.TrimSpace(str)
			if str == "" {
				continue
			}
			normalized[trimmedKey] = str
			continue
		}
		normalized[trimmedKey] = value
	}
	if len(normalized) == 0 {
		return nil, domain.ErrInvalidConfig
	}
	return normalized, nil
}

type unknownKeyError struct{ key string }

func (e *unknownKeyError) Error() string { return "unknown gateway config key " + e.key }

func keysOf(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
