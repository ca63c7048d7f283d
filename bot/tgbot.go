// Package bot delivers registry events to the shop owner's Telegram chat and answers
// a few read-only commands from that chat.
//
// Outgoing messages go through a buffered queue drained by one goroutine, so the
// registry listener never waits on the network. When the queue is full the message
// is dropped and counted.
package bot

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"promoreg/internal/registry"
	"promoreg/lib/sl"
)

// BotConfig holds Telegram-specific configuration loaded from the YAML config file.
type BotConfig struct {
	ChatId    int64
	QueueSize int
	MinLevel  slog.Level
}

// Reader is the read surface of the registry used by bot commands.
type Reader interface {
	Owner() string
	Promotions() []*registry.Promotion
	SlotOf(name string) (uint64, error)
	Promotion(slot uint64) (*registry.Promotion, error)
}

type sender interface {
	SendMessage(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error)
}

type TgBot struct {
	log     *slog.Logger
	api     *tgbotapi.Bot
	send    sender
	reader  Reader
	config  BotConfig
	queue   chan string
	dropped atomic.Int64
	updater *ext.Updater
	once    sync.Once
	stopCh  chan struct{}
	done    chan struct{}
}

func NewTgBot(apiKey string, reader Reader, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	if cfg.ChatId == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	t := newBot(api, reader, log, cfg)
	t.api = api
	return t, nil
}

func newBot(send sender, reader Reader, log *slog.Logger, cfg BotConfig) *TgBot {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &TgBot{
		log:    log.With(sl.Module("tgbot")),
		send:   send,
		reader: reader,
		config: cfg,
		queue:  make(chan string, cfg.QueueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetReader attaches the registry used by commands. Call before Start.
func (t *TgBot) SetReader(reader Reader) {
	t.reader = reader
}

// Start runs the sender loop and long-polls for commands. It blocks until Stop.
func (t *TgBot) Start() error {
	go t.run()

	if t.api == nil {
		<-t.stopCh
		return nil
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("status", t.status))
	dispatcher.AddHandler(handlers.NewCommand("promotions", t.promotions))
	dispatcher.AddHandler(handlers.NewCommand("promotion", t.promotion))

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	t.once.Do(func() {
		close(t.stopCh)
		if t.updater != nil {
			t.log.Info("stopping telegram bot")
			t.updater.Stop()
		}
	})
}

// run delivers queued messages until Stop, then flushes what is left.
func (t *TgBot) run() {
	defer close(t.done)
	for {
		select {
		case msg := <-t.queue:
			t.plainResponse(t.config.ChatId, msg)
		case <-t.stopCh:
			for {
				select {
				case msg := <-t.queue:
					t.plainResponse(t.config.ChatId, msg)
				default:
					return
				}
			}
		}
	}
}

// Dropped is the number of messages discarded because the queue was full.
func (t *TgBot) Dropped() int64 {
	return t.dropped.Load()
}
