package config_test

import (
	"testing"
	"time"

	"github.com/jhoicas/facturacion-sunat/pkg/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, config.SUNATEnvDev, cfg.SUNAT.Env)
	assert.Equal(t, 90*time.Second, cfg.SUNAT.Timeout())
	assert.Equal(t, 300*time.Second, cfg.SUNAT.CacheTTL())
	assert.Equal(t, 600*time.Second, cfg.SUNAT.Grace())
	assert.Equal(t, "0.50", cfg.SUNAT.ICBPERAmount)
	assert.Empty(t, cfg.SUNAT.DefaultSignerRUC, "la identidad por defecto nunca viene fijada en código")
}

func TestFromViper_EnvDesconocido(t *testing.T) {
	v := viper.New()
	v.Set("SUNAT_ENV", "staging")
	_, err := config.FromViper(v)
	require.Error(t, err)
}

func TestFromViper_TimeoutComoString(t *testing.T) {
	v := viper.New()
	v.Set("SUNAT_TIMEOUT_SECONDS", "100")
	v.Set("SUNAT_ENV", "BETA")
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, config.SUNATEnvBeta, cfg.SUNAT.Env)
	assert.Equal(t, 100*time.Second, cfg.SUNAT.Timeout())
}

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, config.DefaultSUNATTimeout, config.ClampTimeout(0))
	assert.Equal(t, config.MinSUNATTimeout, config.ClampTimeout(5*time.Second))
	assert.Equal(t, config.MaxSUNATTimeout, config.ClampTimeout(10*time.Minute))
	assert.Equal(t, 75*time.Second, config.ClampTimeout(75*time.Second))
}

func TestFromViper_EnvioAsincrono(t *testing.T) {
	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)
	assert.False(t, cfg.SUNAT.AsyncSubmission)

	v := viper.New()
	v.Set("SUNAT_ASYNC_SUBMISSION", "true")
	cfg, err = config.FromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.SUNAT.AsyncSubmission)

	v.Set("SUNAT_ASYNC_SUBMISSION", "quizás")
	cfg, err = config.FromViper(v)
	require.NoError(t, err)
	assert.False(t, cfg.SUNAT.AsyncSubmission)
}
