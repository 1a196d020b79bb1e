package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
)

// AlertManagerConfig contains configuration for the alert manager
type AlertManagerConfig struct {
	// ScoreThreshold is the minimum opportunity score that raises an alert.
	ScoreThreshold float64

	MaxAlerts      int
	EnableWebhooks bool
	WebhookURL     string
	WebhookTimeout time.Duration
}

// DefaultAlertManagerConfig returns the default alerting configuration.
func DefaultAlertManagerConfig() *AlertManagerConfig {
	return &AlertManagerConfig{
		ScoreThreshold: 0.8,
		MaxAlerts:      1000,
		EnableWebhooks: false,
		WebhookTimeout: 5 * time.Second,
	}
}

// AlertManager retains recent alerts and optionally forwards them to a
// webhook. Alert dispatch is best effort: a failing webhook never blocks
// the scan loop.
type AlertManager struct {
	mu sync.RWMutex

	alerts []*interfaces.Alert
	config *AlertManagerConfig
	client *http.Client
	logger zerolog.Logger

	alertChan chan *interfaces.Alert
	stopChan  chan struct{}
	running   bool
}

// NewAlertManager creates a new alert manager
func NewAlertManager(config *AlertManagerConfig, logger zerolog.Logger) *AlertManager {
	if config == nil {
		config = DefaultAlertManagerConfig()
	}

	return &AlertManager{
		config:    config,
		client:    &http.Client{Timeout: config.WebhookTimeout},
		logger:    logger.With().Str("component", "alerts").Logger(),
		alertChan: make(chan *interfaces.Alert, 100),
		stopChan:  make(chan struct{}),
	}
}

// ScoreThreshold returns the configured alerting threshold.
func (am *AlertManager) ScoreThreshold() float64 {
	return am.config.ScoreThreshold
}

// Start starts the alert dispatch loop.
func (am *AlertManager) Start(ctx context.Context) error {
	am.mu.Lock()
	if am.running {
		am.mu.Unlock()
		return fmt.Errorf("alert manager is already running")
	}
	am.running = true
	am.mu.Unlock()

	go am.processAlerts(ctx)

	return nil
}

// Stop stops the alert manager.
func (am *AlertManager) Stop() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	if !am.running {
		return fmt.Errorf("alert manager is not running")
	}

	close(am.stopChan)
	am.running = false

	return nil
}

// SendAlert queues an alert for dispatch and retains it for the API.
func (am *AlertManager) SendAlert(ctx context.Context, alert *interfaces.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	am.mu.Lock()
	am.alerts = append(am.alerts, alert)
	if len(am.alerts) > am.config.MaxAlerts {
		am.alerts = am.alerts[len(am.alerts)-am.config.MaxAlerts:]
	}
	am.mu.Unlock()

	select {
	case am.alertChan <- alert:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("alert channel is full")
	}
}

// RecentAlerts returns up to limit alerts, newest last.
func (am *AlertManager) RecentAlerts(limit int) []*interfaces.Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}
	out := make([]*interfaces.Alert, limit)
	copy(out, am.alerts[len(am.alerts)-limit:])
	return out
}

func (am *AlertManager) processAlerts(ctx context.Context) {
	for {
		select {
		case alert := <-am.alertChan:
			am.dispatch(ctx, alert)
		case <-am.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (am *AlertManager) dispatch(ctx context.Context, alert *interfaces.Alert) {
	am.logger.Info().
		Str("level", alert.Level).
		Str("token", alert.Token).
		Float64("score", alert.Score).
		Msg(alert.Message)

	if !am.config.EnableWebhooks || am.config.WebhookURL == "" {
		return
	}
	if err := am.postWebhook(ctx, alert); err != nil {
		am.logger.Warn().Err(err).Msg("webhook delivery failed")
	}
}

func (am *AlertManager) postWebhook(ctx context.Context, alert *interfaces.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, am.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := am.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
