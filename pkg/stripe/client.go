package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

// keyPrefixes lists the secret and restricted key prefixes accepted per environment.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client is the platform's Stripe connection. Refunds go through RefundClient.
type Client struct {
	api *stripe.Client
	env string
}

// NewClient refuses to start with a key that does not belong to the configured
// environment, so a live key cannot slip into staging or the reverse.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	key := strings.TrimSpace(cfg.APIKey)
	if err := checkKey(env, key); err != nil {
		return nil, err
	}

	stripe.SetAppInfo(&stripe.AppInfo{Name: "eventdesk-backend"})
	c := &Client{api: stripe.NewClient(key), env: env}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return c, nil
}

// Environment is "test" or "live".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

func checkKey(env, key string) error {
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return fmt.Errorf("stripe environment %q is not one of test, live", env)
	}
	if key == "" {
		return fmt.Errorf("stripe api key is required")
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return nil
		}
	}
	return fmt.Errorf("stripe %s environment needs a key starting with %s", env, strings.Join(prefixes, " or "))
}
