package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/service"
)

// EnsureBootstrapOperator creates or aligns the administrator configured under root.* when the
// service starts, so a fresh install has one working operator token.
func EnsureBootstrapOperator(ctx context.Context, operators service.OperatorService, cfg *config.Config, log *zap.Logger) error {
	token := cfg.Root.BootstrapOperatorToken
	if token == "" || cfg.Root.SecretPepper == "" {
		return nil
	}

	op, err := operators.EnsureToken(ctx, service.CreateOperatorInput{
		Name:  cfg.Root.BootstrapOperatorName,
		Email: cfg.Root.BootstrapOperatorEmail,
		Role:  model.RoleAdministrator,
		Token: token,
	})
	if err != nil {
		return err
	}
	log.Sugar().Infow("bootstrap operator ready", "operator", op.ID, "email", op.Email)
	return nil
}
