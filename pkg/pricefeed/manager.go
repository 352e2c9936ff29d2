// Package pricefeed maintains the WebSocket connection to the price stream
// and fans observed prices out to the trigger scheduler.
package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

// Manager manages a single WebSocket connection to the price feed.
type Manager struct {
	url             string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          Config
	updateChan      chan *types.PriceUpdate
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	subscribed      map[string]bool // mints with at least one watching order
	connected       atomic.Bool
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64
}

// Config holds price feed manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// wireUpdate is the feed's wire format. Timestamps are unix milliseconds.
type wireUpdate struct {
	Mint  string  `json:"mint"`
	Price float64 `json:"price"`
	TS    int64   `json:"ts"`
}

// New creates a new price feed manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		updateChan:   make(chan *types.PriceUpdate, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]bool),
	}
}

// Start connects and launches the read, ping and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("pricefeed-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	now := time.Now()
	m.connected.Store(true)
	m.lastPongTime.Store(now.Unix())
	m.connectionStart.Store(now.Unix())
	ActiveConnections.Set(1)

	m.logger.Info("pricefeed-connected")

	return nil
}

// Subscribe adds mints to the watch set and tells the feed to stream them.
func (m *Manager) Subscribe(ctx context.Context, mints []string) error {
	if len(mints) == 0 {
		return nil
	}

	m.mu.Lock()

	newMints := make([]string, 0, len(mints))
	for _, mint := range mints {
		if !m.subscribed[mint] {
			newMints = append(newMints, mint)
			m.subscribed[mint] = true
		}
	}

	if len(newMints) == 0 {
		m.mu.Unlock()
		return nil
	}

	// Copy the pointer while holding the lock; connect replaces it on
	// reconnect.
	conn := m.conn
	if conn == nil {
		for _, mint := range newMints {
			delete(m.subscribed, mint)
		}
		m.mu.Unlock()
		return fmt.Errorf("price feed is not connected")
	}

	subscribeMsg := map[string]interface{}{
		"op":    "subscribe",
		"mints": newMints,
	}

	totalSubscribed := len(m.subscribed)
	m.mu.Unlock()

	// Network I/O without holding the lock.
	err := conn.WriteJSON(subscribeMsg)
	if err != nil {
		m.mu.Lock()
		for _, mint := range newMints {
			delete(m.subscribed, mint)
		}
		totalSubscribed = len(m.subscribed)
		m.mu.Unlock()

		SubscriptionCount.Set(float64(totalSubscribed))
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(totalSubscribed))

	m.logger.Info("subscribed-to-mints",
		zap.Int("new-count", len(newMints)),
		zap.Int("total-count", totalSubscribed))

	return nil
}

// Unsubscribe stops streaming mints that no longer have watching orders.
func (m *Manager) Unsubscribe(ctx context.Context, mints []string) error {
	if len(mints) == 0 {
		return nil
	}

	m.mu.Lock()

	toRemove := make([]string, 0, len(mints))
	for _, mint := range mints {
		if m.subscribed[mint] {
			toRemove = append(toRemove, mint)
			delete(m.subscribed, mint)
		}
	}

	if len(toRemove) == 0 {
		m.mu.Unlock()
		return nil
	}

	conn := m.conn
	if conn == nil {
		for _, mint := range toRemove {
			m.subscribed[mint] = true
		}
		m.mu.Unlock()
		return fmt.Errorf("price feed is not connected")
	}

	unsubscribeMsg := map[string]interface{}{
		"op":    "unsubscribe",
		"mints": toRemove,
	}

	totalSubscribed := len(m.subscribed)
	m.mu.Unlock()

	err := conn.WriteJSON(unsubscribeMsg)
	if err != nil {
		m.mu.Lock()
		for _, mint := range toRemove {
			m.subscribed[mint] = true
		}
		totalSubscribed = len(m.subscribed)
		m.mu.Unlock()

		SubscriptionCount.Set(float64(totalSubscribed))
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(totalSubscribed))
	UnsubscriptionsTotal.Inc()

	m.logger.Info("unsubscribed-from-mints",
		zap.Int("count", len(toRemove)),
		zap.Int("remaining-count", totalSubscribed))

	return nil
}

// readLoop reads price updates from the WebSocket.
func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("read-error", zap.Error(err))

			startTime := m.connectionStart.Load()
			if startTime > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
			}

			m.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		// The feed batches updates into arrays.
		var updates []wireUpdate
		err = json.Unmarshal(message, &updates)
		if err != nil {
			messageStr := string(message)

			if messageStr == "[]" || messageStr == "" || len(message) < 10 {
				continue
			}

			var controlMsg map[string]interface{}
			if json.Unmarshal(message, &controlMsg) == nil {
				if op, ok := controlMsg["op"].(string); ok {
					m.logger.Debug("pricefeed-control-message",
						zap.String("op", op),
						zap.Int("bytes", len(message)))
					continue
				}
			}

			previewLen := len(messageStr)
			if previewLen > 100 {
				previewLen = 100
			}
			m.logger.Debug("pricefeed-unparseable-message",
				zap.Error(err),
				zap.Int("bytes", len(message)),
				zap.String("preview", messageStr[:previewLen]))
			continue
		}

		for i := range updates {
			wire := &updates[i]
			if wire.Mint == "" || wire.Price <= 0 {
				MessagesDroppedTotal.WithLabelValues("invalid").Inc()
				continue
			}

			update := &types.PriceUpdate{
				Mint:       wire.Mint,
				Price:      wire.Price,
				ObservedAt: time.UnixMilli(wire.TS),
			}

			MessagesReceivedTotal.Inc()

			select {
			case m.updateChan <- update:
			default:
				m.logger.Warn("update-channel-full", zap.String("mint", wire.Mint))
				MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
			}
		}
	}
}

// pingLoop sends periodic PING frames.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop handles reconnection when the connection drops.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect")

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		err = m.resubscribeAll()
		if err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.logger.Info("reconnection-complete-restarting-read-loop")

		m.wg.Add(1)
		go m.readLoop()
	}
}

// resubscribeAll re-sends the watch set after a reconnect.
func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	mints := make([]string, 0, len(m.subscribed))
	for mint := range m.subscribed {
		mints = append(mints, mint)
	}
	m.mu.RUnlock()

	if len(mints) == 0 {
		return nil
	}

	subscribeMsg := map[string]interface{}{
		"op":    "subscribe",
		"mints": mints,
	}

	m.mu.RLock()
	err := m.conn.WriteJSON(subscribeMsg)
	m.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-to-all-mints", zap.Int("count", len(mints)))

	return nil
}

// UpdateChan returns the channel carrying observed prices.
func (m *Manager) UpdateChan() <-chan *types.PriceUpdate {
	return m.updateChan
}

// Close gracefully closes the price feed manager.
func (m *Manager) Close() error {
	m.logger.Info("closing-pricefeed")

	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	close(m.updateChan)

	ActiveConnections.Set(0)

	m.logger.Info("pricefeed-closed")

	return nil
}
