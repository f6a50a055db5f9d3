package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/observability"
)

// Clock fuente de tiempo inyectable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapta una función a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reloj real.
var SystemClock Clock = ClockFunc(time.Now)

// Loader carga un certificado desde disco.
type Loader func(path, password string) (*CertificateBundle, error)

type cacheEntry struct {
	bundle    *CertificateBundle
	expiresAt time.Time
}

// CertificateCache caché de bundles por (ruta, hash de contraseña) con TTL.
// Lecturas concurrentes con RLock; la recarga toma el lock de escritura.
// Los errores de carga no se guardan.
type CertificateCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   Clock
	load    Loader
}

// CacheOption configuración opcional de la caché.
type CacheOption func(*CertificateCache)

// WithLoader reemplaza la carga desde disco.
func WithLoader(l Loader) CacheOption {
	return func(c *CertificateCache) { c.load = l }
}

// NewCertificateCache crea la caché. ttl <= 0 usa DefaultCacheTTL; clock nil usa el reloj real.
func NewCertificateCache(ttl time.Duration, clock Clock, opts ...CacheOption) *CertificateCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	c := &CertificateCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
		load:    LoadCertificate,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get devuelve el bundle cacheado o lo carga si no existe o expiró.
func (c *CertificateCache) Get(path, password string) (*CertificateBundle, error) {
	key := cacheKey(path, password)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.clock.Now().Before(e.expiresAt) {
		observability.CertCacheLookups.WithLabelValues("hit").Inc()
		return e.bundle, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		observability.CertCacheLookups.WithLabelValues("hit").Inc()
		return e.bundle, nil
	}
	observability.CertCacheLookups.WithLabelValues("miss").Inc()

	b, err := c.load(path, password)
	if err != nil {
		delete(c.entries, key)
		return nil, err
	}
	b.LoadedAt = now
	c.entries[key] = cacheEntry{bundle: b, expiresAt: now.Add(c.ttl)}
	return b, nil
}

// Invalidate descarta la entrada de (path, password).
func (c *CertificateCache) Invalidate(path, password string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(path, password))
	c.mu.Unlock()
}

// Purge descarta las entradas expiradas y devuelve cuántas quitó.
func (c *CertificateCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len entradas actuales, vigentes o no.
func (c *CertificateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheKey la contraseña nunca se guarda en claro.
func cacheKey(path, password string) string {
	sum := sha256.Sum256([]byte(password))
	return path + "\x00" + hex.EncodeToString(sum[:])
}
