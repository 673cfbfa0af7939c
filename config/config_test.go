package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DELIVERY_FEE_DHAKA", "")
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(70), cfg.Business.DeliveryDhaka)
	assert.Equal(t, int64(120), cfg.Business.DeliveryOutside)
	assert.Equal(t, 30*24*time.Hour, cfg.Redis.CartTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DELIVERY_FEE_OUTSIDE", "150")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ADMIN_EMAILS", "owner@shop.com")
	t.Setenv("ADMIN_PASSWORDS", "Owner@Shop.com:$2a$10$abc, broken, :nohash")
	t.Setenv("CART_TTL", "48h")
	cfg := Load()

	assert.Equal(t, int64(150), cfg.Business.DeliveryOutside)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, map[string]string{"owner@shop.com": "$2a$10$abc"}, cfg.Auth.Passwords)
	assert.Equal(t, 48*time.Hour, cfg.Redis.CartTTL)
}

func TestValidateJWTSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	cfg := Load()
	assert.Equal(t, DefaultJWTSecret, cfg.Auth.JWTSecret)
	assert.ErrorIs(t, cfg.Validate(), ErrInsecureSecret)

	t.Setenv("JWT_SECRET", "short-secret")
	assert.ErrorIs(t, Load().Validate(), ErrInsecureSecret)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	require.NoError(t, Load().Validate())

	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, Load().Validate())
}
