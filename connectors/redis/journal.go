// Package redis journals recorded behavior markers to Redis.
//
// Markers are appended as JSON to a capped list and published on a channel
// so other processes can follow an agent's behavior live.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/acn-rai/rai-memory/component"
	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/errors"
	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/observable"
)

// ComponentName is the registered name of the journal.
const ComponentName = "BehaviorJournal"

// Journal persists behavior markers to a Redis list.
type Journal struct {
	component.Base

	cfg config.RedisConfig
	log *logger.Logger

	mu     sync.RWMutex
	client *goredis.Client
	owned  bool
}

var (
	_ component.Component     = (*Journal)(nil)
	_ component.Lifecycle     = (*Journal)(nil)
	_ component.HealthChecker = (*Journal)(nil)

	_ observable.Observer = (*Journal)(nil).Observe
)

// New creates a journal that connects on Start.
func New(cfg config.RedisConfig) *Journal {
	return &Journal{
		Base: component.NewBase(ComponentName),
		cfg:  cfg,
		log:  logger.WithComponent(ComponentName),
	}
}

// NewWithClient creates a journal over an existing client. Stop leaves the
// client open.
func NewWithClient(client *goredis.Client, cfg config.RedisConfig) *Journal {
	j := New(cfg)
	j.client = client
	return j
}

// Start connects to Redis and verifies the connection. A disabled journal
// starts without connecting.
func (j *Journal) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.client != nil {
		return nil
	}
	if !j.cfg.Enabled {
		j.log.Info("disabled")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     j.cfg.Addr,
		Password: j.cfg.Password,
		DB:       j.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return errors.ConnectionFailed("redis").WithCause(err)
	}

	j.client = client
	j.owned = true
	j.log.Info("connected", logger.Fields("addr", j.cfg.Addr, "key", j.cfg.Key))
	return nil
}

// Stop closes a connection opened by Start.
func (j *Journal) Stop(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.client == nil || !j.owned {
		return nil
	}
	err := j.client.Close()
	j.client = nil
	j.owned = false
	if err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

// Enabled reports whether the journal is configured to connect.
func (j *Journal) Enabled() bool { return j.cfg.Enabled }

// Health pings Redis.
func (j *Journal) Health(ctx context.Context) component.Health {
	h := component.Health{Name: ComponentName, Status: component.StatusHealthy}

	client, err := j.conn()
	if err != nil && !j.cfg.Enabled {
		h.Message = "disabled"
		return h
	}
	if err != nil {
		h.Status = component.StatusUnhealthy
		h.Message = "not connected"
		return h
	}
	if err := client.Ping(ctx).Err(); err != nil {
		h.Status = component.StatusUnhealthy
		h.Message = fmt.Sprintf("ping failed: %v", err)
	}
	return h
}

func (j *Journal) conn() (*goredis.Client, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.client == nil {
		return nil, errors.ServiceUnavailable(ComponentName)
	}
	return j.client, nil
}

// Observe appends markers to the journal and publishes each one. Its
// signature matches observable.Observer so it can be passed to AddObserver.
func (j *Journal) Observe(ctx context.Context, event string, markers []observable.BehaviorMarker) error {
	if len(markers) == 0 {
		return nil
	}
	client, err := j.conn()
	if err != nil {
		return err
	}

	entries := make([]interface{}, 0, len(markers))
	for _, m := range markers {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode marker: %w", errors.Internal(err))
		}
		entries = append(entries, string(data))
	}

	_, err = client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, j.cfg.Key, entries...)
		if j.cfg.MaxEntries > 0 {
			pipe.LTrim(ctx, j.cfg.Key, -j.cfg.MaxEntries, -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal %s: %w", event, err)
	}

	if j.cfg.Channel != "" {
		_, err = client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, e := range entries {
				pipe.Publish(ctx, j.cfg.Channel, e)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", event, err)
		}
	}

	j.log.Debug("journaled", logger.Fields(logger.FieldEvent, event, logger.FieldCount, len(markers)))
	return nil
}

// Recent returns the last n journaled markers, oldest first.
func (j *Journal) Recent(ctx context.Context, n int64) ([]observable.BehaviorMarker, error) {
	if n <= 0 {
		return nil, nil
	}
	client, err := j.conn()
	if err != nil {
		return nil, err
	}

	raw, err := client.LRange(ctx, j.cfg.Key, -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	markers := make([]observable.BehaviorMarker, 0, len(raw))
	for _, r := range raw {
		var m observable.BehaviorMarker
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			j.log.Warn("skipping unreadable marker", logger.Fields(logger.FieldError, err.Error()))
			continue
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// Subscription follows markers published on the journal channel.
type Subscription struct {
	ps *goredis.PubSub
}

// Subscribe starts following the journal channel. The subscription is
// confirmed before Subscribe returns.
func (j *Journal) Subscribe(ctx context.Context) (*Subscription, error) {
	if j.cfg.Channel == "" {
		return nil, errors.InvalidInput("channel", "journal has no channel")
	}
	client, err := j.conn()
	if err != nil {
		return nil, err
	}

	ps := client.Subscribe(ctx, j.cfg.Channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", j.cfg.Channel, err)
	}
	return &Subscription{ps: ps}, nil
}

// Next blocks until the next marker arrives or ctx is done.
func (s *Subscription) Next(ctx context.Context) (observable.BehaviorMarker, error) {
	var m observable.BehaviorMarker
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		return m, fmt.Errorf("decode marker: %w", err)
	}
	return m, nil
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.ps.Close()
}
