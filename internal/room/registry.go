package room

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/message"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
)

// cleanupTimeout bounds the storage work behind an alarm-driven expiry.
const cleanupTimeout = 30 * time.Second

// IndexSyncer is notified after the registry mutates the shared wallet
// index, so the upstream filter can be reconciled. Implementations must not
// block.
type IndexSyncer interface {
	TriggerSync(ctx context.Context)
}

// Registry owns the code→actor mapping and the expiry alarms. Actors are
// created lazily on first use and revived transparently after a restart;
// their durable state lives in the KV store, not in the actor itself.
type Registry struct {
	models         *data.Models
	pushClient     message.PushNotifierClient
	monitorService monitor.MonitorServiceInterface
	indexSyncer    IndexSyncer

	mu     sync.Mutex
	actors map[string]*Actor
	alarms map[string]*time.Timer
	closed bool
}

func NewRegistry(models *data.Models, pushClient message.PushNotifierClient, monitorService monitor.MonitorServiceInterface, indexSyncer IndexSyncer) *Registry {
	return &Registry{
		models:         models,
		pushClient:     pushClient,
		monitorService: monitorService,
		indexSyncer:    indexSyncer,
		actors:         make(map[string]*Actor),
		alarms:         make(map[string]*time.Timer),
	}
}

// Room returns the actor for code, starting one if needed. Codes are
// case-insensitive.
func (r *Registry) Room(code string) *Actor {
	code = strings.ToLower(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.actors[code]; ok {
		return actor
	}

	actor := newActor(code, r.models, r.pushClient, r.monitorService, r)
	r.actors[code] = actor
	return actor
}

// Arm schedules the room's self-destruct at the given time, replacing any
// previous alarm. Under normal scheduling the alarm fires within a few
// seconds of the requested time.
func (r *Registry) Arm(code string, at time.Time) {
	code = strings.ToLower(code)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if timer, ok := r.alarms[code]; ok {
		timer.Stop()
	}
	r.alarms[code] = time.AfterFunc(time.Until(at), func() {
		r.expire(code)
	})
}

// Disarm cancels the room's pending alarm, if any.
func (r *Registry) Disarm(code string) {
	code = strings.ToLower(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.alarms[code]; ok {
		timer.Stop()
		delete(r.alarms, code)
	}
}

// RearmAlarms scans the persisted configs and schedules an alarm for each,
// covering alarms that were pending when the process last stopped. Rooms
// already past their expiry fire immediately.
func (r *Registry) RearmAlarms(ctx context.Context) error {
	configs, err := r.models.Rooms.ListConfigs(ctx)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		r.Arm(cfg.Code, cfg.ExpiresAt)
	}
	if len(configs) > 0 {
		log.Ctx(ctx).Infof("re-armed expiry alarms for %d rooms", len(configs))
	}
	return nil
}

// Destroy runs the room's cleanup, clears its index entries, triggers a
// filter sync and retires the actor. It serves both explicit deletion and
// the expiry alarm.
func (r *Registry) Destroy(ctx context.Context, code, trigger, reason string) error {
	code = strings.ToLower(code)
	actor := r.Room(code)

	if err := actor.Cleanup(ctx, trigger, reason); err != nil {
		return err
	}

	if err := r.models.WalletIndex.CleanupRoomIndex(ctx, code); err != nil {
		// The index self-heals on later writes, so a failed cleanup is not
		// fatal to the destruction.
		log.Ctx(ctx).Errorf("cleaning up index for room %s: %s", code, err.Error())
	}
	if r.indexSyncer != nil {
		r.indexSyncer.TriggerSync(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actors[code]; ok && a == actor {
		actor.stop()
		delete(r.actors, code)
	}
	return nil
}

// NotifySwap routes a swap notification to the actor serving code.
func (r *Registry) NotifySwap(ctx context.Context, code string, event *data.SwapEvent) (NotifySwapResult, error) {
	return r.Room(code).NotifySwap(ctx, event)
}

// Shutdown closes every session with 1001, stops all actors and cancels
// all alarms. The registry is unusable afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	actors := make([]*Actor, 0, len(r.actors))
	for _, actor := range r.actors {
		actors = append(actors, actor)
	}
	r.actors = make(map[string]*Actor)
	for code, timer := range r.alarms {
		timer.Stop()
		delete(r.alarms, code)
	}
	r.mu.Unlock()

	for _, actor := range actors {
		actor.sessions.CloseAll(websocket.CloseGoingAway, "Server shutting down")
		actor.stop()
	}
}

func (r *Registry) expire(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	log.Ctx(ctx).Infof("room %s expired, running cleanup", code)
	if err := r.Destroy(ctx, code, "alarm", "Room expired"); err != nil {
		log.Ctx(ctx).Errorf("destroying expired room %s: %s", code, err.Error())
	}
}
