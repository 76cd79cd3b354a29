package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/repo"
	"github.com/wplc/livechat/internal/pkg/utils/secrets"
	"github.com/wplc/livechat/internal/pkg/utils/tokens"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken    = errors.New("invalid operator token")
	ErrInvalidRole     = errors.New("role must be administrator or chat_operator")
	ErrOperatorExists  = errors.New("operator with this email already exists")
	ErrMissingOperator = errors.New("operator name and email are required")
)

type CreateOperatorInput struct {
	Name  string
	Email string
	Role  model.OperatorRole
	// Token is optional; a random one is generated when empty.
	Token string
}

type OperatorService interface {
	// Create stores a new operator and returns it with the plain bearer token, shown only once.
	Create(ctx context.Context, in CreateOperatorInput) (*model.Operator, string, error)
	// EnsureToken creates the operator or rotates its token so that token authenticates it.
	EnsureToken(ctx context.Context, in CreateOperatorInput) (*model.Operator, error)
	Authenticate(ctx context.Context, bearer string) (*model.Operator, error)
	List(ctx context.Context) ([]model.Operator, error)
}

type operatorService struct {
	r   repo.OperatorRepo
	cfg *config.Config
	log *zap.Logger
}

func NewOperatorService(r repo.OperatorRepo, cfg *config.Config, log *zap.Logger) OperatorService {
	return &operatorService{r: r, cfg: cfg, log: log}
}

func (s *operatorService) credentials(token string) (raw, lookup, phc string, err error) {
	prefix := s.cfg.Root.OperatorTokenPrefix
	raw = token
	secret, ok := tokens.ParseToken(raw, prefix)
	if raw == "" {
		raw, secret, err = tokens.Generate(prefix)
		if err != nil {
			return "", "", "", err
		}
	} else if !ok {
		return "", "", "", fmt.Errorf("%w: token must start with %q", ErrInvalidToken, prefix)
	}
	phc, err = secrets.HashSecret(secret, s.cfg.Root.SecretPepper)
	if err != nil {
		return "", "", "", err
	}
	return raw, tokens.HMAC256Hex(s.cfg.Root.SecretPepper, secret), phc, nil
}

func validateOperatorInput(in *CreateOperatorInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return ErrMissingOperator
	}
	if in.Role == "" {
		in.Role = model.RoleChatOperator
	}
	if !model.ValidOperatorRole(in.Role) {
		return ErrInvalidRole
	}
	return nil
}

func (s *operatorService) Create(ctx context.Context, in CreateOperatorInput) (*model.Operator, string, error) {
	if err := validateOperatorInput(&in); err != nil {
		return nil, "", err
	}
	if _, err := s.r.GetByEmail(ctx, in.Email); err == nil {
		return nil, "", ErrOperatorExists
	} else if !errors.Is(err, repo.ErrOperatorNotFound) {
		return nil, "", err
	}

	raw, lookup, phc, err := s.credentials(in.Token)
	if err != nil {
		return nil, "", err
	}
	op := &model.Operator{
		Name:             in.Name,
		Email:            in.Email,
		Role:             in.Role,
		SecretKeyHMAC:    lookup,
		SecretKeyHashPHC: phc,
	}
	if err := s.r.Create(ctx, op); err != nil {
		return nil, "", fmt.Errorf("create operator: %w", err)
	}
	s.log.Info("operator created", zap.Uint64("operator_id", op.ID), zap.String("role", op.Role))
	return op, raw, nil
}

func (s *operatorService) EnsureToken(ctx context.Context, in CreateOperatorInput) (*model.Operator, error) {
	if in.Token == "" {
		return nil, ErrInvalidToken
	}
	if err := validateOperatorInput(&in); err != nil {
		return nil, err
	}

	op, err := s.r.GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, repo.ErrOperatorNotFound):
		op, _, err = s.Create(ctx, in)
		return op, err
	case err != nil:
		return nil, err
	}

	_, lookup, phc, err := s.credentials(in.Token)
	if err != nil {
		return nil, err
	}
	if err := s.r.UpdateSecret(ctx, op.ID, lookup, phc); err != nil {
		return nil, err
	}
	op.SecretKeyHMAC, op.SecretKeyHashPHC = lookup, phc
	s.log.Info("operator token aligned", zap.Uint64("operator_id", op.ID))
	return op, nil
}

func (s *operatorService) Authenticate(ctx context.Context, bearer string) (*model.Operator, error) {
	secret, ok := tokens.ParseToken(bearer, s.cfg.Root.OperatorTokenPrefix)
	if !ok {
		return nil, ErrInvalidToken
	}
	op, err := s.r.GetBySecretHMAC(ctx, tokens.HMAC256Hex(s.cfg.Root.SecretPepper, secret))
	if errors.Is(err, repo.ErrOperatorNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if s.cfg.Root.EnableArgon2Verification {
		pass, err := secrets.VerifySecret(secret, s.cfg.Root.SecretPepper, op.SecretKeyHashPHC)
		if err != nil || !pass {
			return nil, ErrInvalidToken
		}
	}
	return op, nil
}

func (s *operatorService) List(ctx context.Context) ([]model.Operator, error) {
	return s.r.List(ctx)
}
