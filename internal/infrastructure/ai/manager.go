package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/bodega-agent/internal/application/ports"
	"github.com/jhoicas/bodega-agent/internal/observability"
	"github.com/jhoicas/bodega-agent/pkg/config"
)

// Nombres de proveedor aceptados en AI_PROVIDER.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

// Manager resuelve el proveedor de texto configurado y es dueño de su ciclo de vida.
// Se crea una vez al arrancar y se cierra al terminar el proceso.
type Manager struct {
	name     string
	provider ports.TextGenerator
	closeFn  func()
}

// NewManager construye el proveedor indicado en cfg.Provider.
// "none" (o vacío) deja el pipeline sin proveedor; un nombre desconocido es error de configuración.
func NewManager(cfg config.AIConfig, opts ...Option) (*Manager, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	m := &Manager{name: name}
	switch name {
	case ProviderAnthropic:
		p := NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, opts...)
		m.provider, m.closeFn = p, p.closeIdle
	case ProviderGemini:
		p := NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, opts...)
		m.provider, m.closeFn = p, p.closeIdle
	case ProviderOpenAI:
		p := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, opts...)
		m.provider, m.closeFn = p, p.closeIdle
	case ProviderNone, "":
		m.name = ProviderNone
	default:
		return nil, fmt.Errorf("AI_PROVIDER desconocido %q (valores: anthropic, gemini, openai, none)", cfg.Provider)
	}
	return m, nil
}

// Name devuelve el proveedor activo.
func (m *Manager) Name() string {
	return m.name
}

// Generator devuelve el generador a inyectar en el traductor, o nil si no hay proveedor.
func (m *Manager) Generator() ports.TextGenerator {
	if m == nil || m.provider == nil {
		return nil
	}
	return m
}

// Generate delega en el proveedor activo y registra el resultado en métricas.
func (m *Manager) Generate(ctx context.Context, prompt string) (string, error) {
	if m.provider == nil {
		return "", fmt.Errorf("AI: no hay proveedor configurado")
	}
	text, err := m.provider.Generate(ctx, prompt)
	observability.ObserveProviderRequest(m.name, err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.name, err)
	}
	return text, nil
}

// Close libera las conexiones ociosas del proveedor.
func (m *Manager) Close() error {
	if m.closeFn != nil {
		m.closeFn()
	}
	return nil
}
