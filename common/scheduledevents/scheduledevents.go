// Package scheduledevents is a persisted delayed job queue, used for things like timed unmutes and unbans.
//
// Events live in the store under "scheduled:{id}" with an index on their trigger time,
// a loop checks the index every second and runs the handlers of everything that's due.
package scheduledevents

import (
	"encoding/json"
	"net/http"
	"reflect"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/common/store"
)

const indexName = "scheduled_triggers_at"

type ScheduledEvent struct {
	ID         int64           `json:"id"`
	GuildID    string          `json:"guild_id"`
	EventName  string          `json:"event_name"`
	TriggersAt int64           `json:"triggers_at"`
	Data       json.RawMessage `json:"data"`
}

func KeyEvent(id int64) string {
	return "scheduled:" + strconv.FormatInt(id, 10)
}

type ScheduledEvents struct {
	stop chan *sync.WaitGroup

	currentlyProcessingMU sync.Mutex
	currentlyProcessing   map[int64]bool
	processing            sync.WaitGroup
}

func newScheduledEventsPlugin() *ScheduledEvents {
	return &ScheduledEvents{
		stop:                make(chan *sync.WaitGroup),
		currentlyProcessing: make(map[int64]bool),
	}
}

func (p *ScheduledEvents) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Scheduled Events",
		SysName:  "scheduled_events",
		Category: common.PluginCategoryCore,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(newScheduledEventsPlugin())
}

type HandlerFunc func(evt *ScheduledEvent, data interface{}) (retry bool, err error)

type RegisteredHandler struct {
	EvtName    string
	DataFormat interface{}
	Handler    HandlerFunc
}

var (
	registeredHandlers = make(map[string]*RegisteredHandler)
	running            bool
	logger             = common.GetPluginLogger(&ScheduledEvents{})

	// GuildAvailable decides whether an event's guild can be handled now (available)
	// or is gone for good and its events should be dropped (gone)
	GuildAvailable = stateGuildAvailable

	retryBaseDelay = time.Second
)

// RegisterHandler registers a handler for the specified event name
// dataFormat is optional and should not be a pointer, it should match the type you're passing into ScheduleEvent
func RegisterHandler(eventName string, dataFormat interface{}, handler HandlerFunc) {
	if running {
		panic("tried adding handler when scheduledevents is running")
	}

	registeredHandlers[eventName] = &RegisteredHandler{
		EvtName:    eventName,
		DataFormat: dataFormat,
		Handler:    handler,
	}

	logger.Debug("Registered handler for ", eventName)
}

// ScheduleEvent persists a new event that will run evtName's handler at runAt
func ScheduleEvent(evtName string, guildID string, runAt time.Time, data interface{}) (int64, error) {
	id, err := common.Store.NextID("scheduled_events")
	if err != nil {
		return 0, errors.WithMessage(err, "next id")
	}

	m := &ScheduledEvent{
		ID:         id,
		GuildID:    guildID,
		EventName:  evtName,
		TriggersAt: runAt.Unix(),
		Data:       json.RawMessage("{}"),
	}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return 0, errors.WithMessage(err, "marshal")
		}

		m.Data = b
	}

	err = common.Store.Put(KeyEvent(id), m, 0)
	return id, errors.WithMessage(err, "insert")
}

// DeleteEvents removes pending events in a guild with the given name, for which filter returns true.
// filter receives the decoded data, in the registered DataFormat.
func DeleteEvents(guildID, evtName string, filter func(data interface{}) bool) (int, error) {
	var toDelete []int64
	err := common.Store.Ascend("scheduled:*", func(key, raw string) bool {
		var evt ScheduledEvent
		if err := store.Decode(raw, &evt); err != nil {
			return true
		}

		if evt.GuildID != guildID || evt.EventName != evtName {
			return true
		}

		if filter != nil {
			data, err := decodeData(&evt)
			if err != nil || !filter(data) {
				return true
			}
		}

		toDelete = append(toDelete, evt.ID)
		return true
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range toDelete {
		if err := common.Store.Delete(KeyEvent(id)); err == nil {
			n++
		}
	}

	return n, nil
}

// PendingEvents returns events in a guild with the given name, ordered by id
func PendingEvents(guildID, evtName string) ([]*ScheduledEvent, error) {
	var out []*ScheduledEvent
	err := common.Store.Ascend("scheduled:*", func(key, raw string) bool {
		var evt ScheduledEvent
		if store.Decode(raw, &evt) == nil && evt.GuildID == guildID && evt.EventName == evtName {
			out = append(out, &evt)
		}
		return true
	})
	return out, err
}

// RemoveGuildData drops every pending event of a guild
func (se *ScheduledEvents) RemoveGuildData(guildID string) error {
	for name := range registeredHandlers {
		if _, err := DeleteEvents(guildID, name, nil); err != nil {
			return err
		}
	}
	return nil
}

var _ bot.LateBotInitHandler = (*ScheduledEvents)(nil)
var _ bot.BotStopperHandler = (*ScheduledEvents)(nil)
var _ common.GuildDataRemover = (*ScheduledEvents)(nil)

func (se *ScheduledEvents) LateBotInit() {
	if err := common.Store.EnsureIndex(indexName, "scheduled:*", "triggers_at"); err != nil {
		logger.WithError(err).Fatal("failed creating scheduled events index")
	}

	running = true
	go se.runCheckLoop()
}

func (se *ScheduledEvents) StopBot(wg *sync.WaitGroup) {
	se.stop <- wg
}

func (se *ScheduledEvents) runCheckLoop() {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for {
		select {
		case wg := <-se.stop:
			se.processing.Wait()
			wg.Done()
			return
		case <-t.C:
			se.check(time.Now())
		}
	}
}

var metricsScheduledEventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuzu_scheduledevents_processed_total",
	Help: "Total scheduled events processed",
})

var metricsScheduledEventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuzu_scheduledevents_skipped_total",
	Help: "Total scheduled events skipped",
})

func (se *ScheduledEvents) check(now time.Time) {
	se.currentlyProcessingMU.Lock()
	defer se.currentlyProcessingMU.Unlock()

	var due []*ScheduledEvent
	pivot := `{"triggers_at":` + strconv.FormatInt(now.Unix()+1, 10) + `}`
	err := common.Store.AscendIndexBelow(indexName, pivot, func(key, raw string) bool {
		var evt ScheduledEvent
		if err := store.Decode(raw, &evt); err != nil {
			logger.WithError(err).WithField("key", key).Error("corrupt scheduled event")
			return true
		}
		due = append(due, &evt)
		return true
	})
	if err != nil {
		logger.WithError(err).Error("failed checking for scheduled events to process")
		return
	}

	numSkipped := 0
	numHandling := 0
	for _, evt := range due {
		if se.currentlyProcessing[evt.ID] {
			numSkipped++
			continue
		}

		available, gone := GuildAvailable(evt.GuildID)
		if gone {
			logger.WithField("id", evt.ID).WithField("guild", evt.GuildID).Info("removing event entirely since the bot is not on the guild anymore")
			deleteEvent(evt)
			numSkipped++
			continue
		}
		if !available {
			numSkipped++
			continue
		}

		numHandling++
		se.currentlyProcessing[evt.ID] = true
		se.processing.Add(1)
		go se.processItem(evt)
	}

	metricsScheduledEventsProcessed.Add(float64(numHandling))
	metricsScheduledEventsSkipped.Add(float64(numSkipped))

	if numHandling > 0 {
		logger.Info("triggered ", numHandling, " scheduled events (skipped ", numSkipped, ")")
	}
}

func stateGuildAvailable(guildID string) (available bool, gone bool) {
	if guildID == "" {
		return true, false
	}

	g, err := common.BotSession.State.Guild(guildID)
	if err != nil {
		// not in state yet right after a restart, give it some time before calling it gone
		if time.Since(bot.Started) < time.Minute*5 {
			return false, false
		}
		return false, true
	}

	return !g.Unavailable, false
}

func decodeData(evt *ScheduledEvent) (interface{}, error) {
	handler, ok := registeredHandlers[evt.EventName]
	if !ok || handler.DataFormat == nil {
		return nil, nil
	}

	typ := reflect.TypeOf(handler.DataFormat)
	decoded := reflect.New(typ).Interface()
	err := json.Unmarshal(evt.Data, decoded)
	return decoded, err
}

func newRetryBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = retryBaseDelay * 10
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (se *ScheduledEvents) processItem(item *ScheduledEvent) {
	l := logger.WithField("id", item.ID).WithField("guild", item.GuildID)
	defer se.processing.Done()

	var err error
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			l.Errorf("recovered from panic in scheduled event handler \n%v\n%v", r, stack)
			err = errors.Errorf("panic: %v", r)
		}
		se.markDone(item, err)
	}()

	handler, ok := registeredHandlers[item.EventName]
	if !ok {
		l.Error("unknown event: ", item.EventName)
		err = errors.NewPlain("No registered handler")
		return
	}

	decodedData, err := decodeData(item)
	if err != nil {
		l.WithError(err).Error("failed decoding event data")
		return
	}

	b := newRetryBackoff()
	for nRetry := 0; nRetry < 10; nRetry++ {
		var retry bool
		retry, err = handler.Handler(item, decodedData)
		if err != nil {
			l.WithError(err).Error("handler returned an error")
		}

		if !retry {
			break
		}

		l.WithError(err).Warn("retrying handling event")
		time.Sleep(b.NextBackOff())
	}
}

func (se *ScheduledEvents) markDone(item *ScheduledEvent, runErr error) {
	defer func() {
		se.currentlyProcessingMU.Lock()
		delete(se.currentlyProcessing, item.ID)
		se.currentlyProcessingMU.Unlock()
	}()

	if runErr != nil {
		logger.WithError(runErr).WithField("id", item.ID).WithField("evt", item.EventName).Warn("scheduled event finished with an error")
	}

	deleteEvent(item)
}

func deleteEvent(item *ScheduledEvent) {
	err := common.Store.Delete(KeyEvent(item.ID))
	if err != nil && err != store.ErrNotFound {
		logger.WithError(err).Error("failed marking item as processed")
	}
}

// CheckDiscordErrRetry returns true for errors worth retrying: 5xx, rate limits and network failures
func CheckDiscordErrRetry(err error) bool {
	if err == nil {
		return false
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil && restErr.Message.Code != 0 {
			// proper discord response, don't retry
			return false
		}

		if restErr.Response != nil {
			code := restErr.Response.StatusCode
			return code >= 500 || code == http.StatusTooManyRequests
		}

		return false
	}

	// an unknown error unrelated to the discord api occurred (a dropped connection for example) attempt a retry
	return true
}
