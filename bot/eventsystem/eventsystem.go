// Package eventsystem fans discord gateway events out to plugin handlers in three ordered stages
package eventsystem

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/yuzubot/yuzu/common"
)

// HandlerFunc handles an event. Returning retry runs it again after a backoff, up to maxRetries times.
type HandlerFunc func(evtData *EventData) (retry bool, err error)
type HandlerFuncLegacy func(evtData *EventData)

type Handler struct {
	Plugin common.Plugin
	F      HandlerFunc
}

type Order int

const (
	// Ran first, synchronously, before discordgo's state has seen later events
	OrderSyncPreState Order = iota
	// Ran second, synchronously
	OrderSyncPostState
	// Ran last in its own goroutine, the right choice for most handlers
	OrderAsyncPostState

	numOrders
)

const maxRetries = 4

// RetryBaseDelay is the first pause before retrying a handler, doubled on every attempt
var RetryBaseDelay = 500 * time.Millisecond

var handlers [numEvents][numOrders][]*Handler

type EventData struct {
	EvtInterface interface{}
	Type         Event
	Session      *discordgo.Session

	ctx       context.Context
	cancelled *atomic.Bool
}

func NewEventData(session *discordgo.Session, t Event, evtInterface interface{}) *EventData {
	return &EventData{
		EvtInterface: evtInterface,
		Type:         t,
		Session:      session,
		cancelled:    new(atomic.Bool),
	}
}

// Cancel stops the remaining handlers of the current order from running
func (e *EventData) Cancel() {
	e.cancelled.Store(true)
}

func (e *EventData) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *EventData) WithContext(ctx context.Context) *EventData {
	cop := *e
	cop.ctx = ctx
	return &cop
}

func (e *EventData) logger() *logrus.Entry {
	return logrus.WithField("evt", e.Type.String()).WithField("guild", e.GuildID())
}

// AddHandler registers handler for evts. EventAll registers it for every gateway event.
func AddHandler(p common.Plugin, handler HandlerFunc, order Order, evts ...Event) {
	h := &Handler{Plugin: p, F: handler}

	for _, evt := range evts {
		if evt == EventAll {
			evts = AllDiscordEvents
			break
		}
	}

	for _, evt := range evts {
		handlers[evt][order] = append(handlers[evt][order], h)
	}
}

// AddHandlerAsyncLast adds handlers using the OrderAsyncPostState order
func AddHandlerAsyncLast(p common.Plugin, handler HandlerFunc, evts ...Event) {
	AddHandler(p, handler, OrderAsyncPostState, evts...)
}

// AddHandlerLegacy registers a handler that never asks for a retry
func AddHandlerLegacy(p common.Plugin, handler HandlerFuncLegacy, order Order, evts ...Event) {
	AddHandler(p, func(evt *EventData) (bool, error) {
		handler(evt)
		return false, nil
	}, order, evts...)
}

func AddHandlerFirstLegacy(p common.Plugin, handler HandlerFuncLegacy, evts ...Event) {
	AddHandlerLegacy(p, handler, OrderSyncPreState, evts...)
}

func AddHandlerSecondLegacy(p common.Plugin, handler HandlerFuncLegacy, evts ...Event) {
	AddHandlerLegacy(p, handler, OrderSyncPostState, evts...)
}

func AddHandlerAsyncLastLegacy(p common.Plugin, handler HandlerFuncLegacy, evts ...Event) {
	AddHandlerLegacy(p, handler, OrderAsyncPostState, evts...)
}

// ResetHandlers drops every registered handler, tests only
func ResetHandlers() {
	handlers = [numEvents][numOrders][]*Handler{}
}

// EmitEvent runs the handlers of evt. The async stage is started in the background once both sync stages finished.
func EmitEvent(data *EventData, evt Event) {
	stages := &handlers[evt]

	runStage(stages[OrderSyncPreState], data)
	runStage(stages[OrderSyncPostState], data)

	async := stages[OrderAsyncPostState]
	if len(async) == 0 {
		return
	}

	go func() {
		defer recoverPanic(data)
		runStage(async, data)
	}()
}

func runStage(stage []*Handler, data *EventData) {
	for _, h := range stage {
		if data.cancelled.Load() {
			return
		}
		runHandler(h, data)
	}
}

func runHandler(h *Handler, data *EventData) {
	var b backoff.BackOff
	for {
		retry, err := h.F(data)
		if err != nil {
			data.logger().WithError(err).Errorf("%s: event handler failed", h.Plugin.PluginInfo().SysName)
		}
		if !retry {
			return
		}

		if b == nil {
			b = backoff.WithMaxRetries(newRetryBackoff(), maxRetries)
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			data.logger().Warnf("%s: giving up on event handler after %d retries", h.Plugin.PluginInfo().SysName, maxRetries)
			return
		}

		time.Sleep(wait)
	}
}

func newRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

func recoverPanic(data *EventData) {
	if r := recover(); r != nil {
		data.logger().WithField(logrus.ErrorKey, r).WithField("stack", string(debug.Stack())).Error("recovered from panic in event handler")
	}
}

var queue chan *EventData

// InitWorker starts the single event worker, events are handled in gateway order
func InitWorker(size int) {
	queue = make(chan *EventData, size)
	go func() {
		for evt := range queue {
			handleEvent(evt)
		}
	}()
}

// HandleEvent is added to the discordgo session as a catch all handler. Payloads without an Event are dropped.
func HandleEvent(s *discordgo.Session, evt interface{}) {
	t := eventType(evt)
	if t == eventUnknown {
		return
	}

	data := NewEventData(s, t, evt)
	if queue == nil {
		handleEvent(data)
		return
	}

	select {
	case queue <- data:
	default:
		logrus.WithField("size", cap(queue)).Error("event queue full, blocking the gateway")
		queue <- data
	}
}

func handleEvent(data *EventData) {
	defer recoverPanic(data)

	EmitEvent(data, EventAllPre)
	EmitEvent(data, data.Type)
	EmitEvent(data, EventAllPost)
}
