// Package telegram implements transport.Messenger on top of the Telegram Bot
// API using telebot.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"tgremind/internal/transport"
	logx "tgremind/pkg/logx"
)

type Config struct {
	Token string
	// URL overrides the Bot API endpoint (tests, local bot API servers).
	URL       string
	Timeout   time.Duration
	ParseMode string
}

// Adapter talks to the Bot API with plain request/response calls. It never
// starts telebot's long poller: updates are pulled once per cycle.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	// offset confirms updates already seen so getUpdates does not replay them.
	mu     sync.Mutex
	offset int64
}

var _ transport.Messenger = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   strings.TrimSpace(cfg.Token),
		URL:     cfg.URL,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Updates fetches pending updates (non-blocking) and returns the chat ids they
// mention, in order of first appearance.
func (a *Adapter) Updates(ctx context.Context) ([]transport.ChatID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	params := map[string]any{"timeout": 0}
	if a.offset != 0 {
		params["offset"] = a.offset
	}
	data, err := a.bot.Raw("getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	var resp struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("getUpdates: decode: %w", err)
	}
	ids, maxID, ok := chatIDsFromUpdates(resp.Result)
	if ok && maxID >= a.offset {
		a.offset = maxID + 1
	}
	a.log.Debug("updates fetched", logx.Int("updates", len(resp.Result)), logx.Int("chats", len(ids)))
	return ids, nil
}

// chatIDsFromUpdates extracts chat ids from raw updates. Every update carries
// exactly one payload object; the chat is either on the payload itself
// (message, my_chat_member, chat_join_request, ...) or on its message
// (callback_query). It also returns the highest update_id, with ok false when
// no update carried one.
func chatIDsFromUpdates(updates []json.RawMessage) (ids []transport.ChatID, maxID int64, ok bool) {
	type chatRef struct {
		ID int64 `json:"id"`
	}
	type payload struct {
		Chat    *chatRef `json:"chat"`
		Message *struct {
			Chat *chatRef `json:"chat"`
		} `json:"message"`
	}

	seen := map[transport.ChatID]struct{}{}
	add := func(c *chatRef) {
		if c == nil || c.ID == 0 {
			return
		}
		if _, ok := seen[c.ID]; ok {
			return
		}
		seen[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}

	for _, raw := range updates {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		for k, v := range fields {
			if k == "update_id" {
				var id int64
				if json.Unmarshal(v, &id) == nil && (!ok || id > maxID) {
					maxID, ok = id, true
				}
				continue
			}
			var p payload
			if json.Unmarshal(v, &p) != nil {
				continue
			}
			add(p.Chat)
			if p.Message != nil {
				add(p.Message.Chat)
			}
		}
	}
	return ids, maxID, ok
}

func (a *Adapter) ChatDescription(ctx context.Context, id transport.ChatID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chat, err := a.bot.ChatByID(id)
	if err != nil {
		return "", err
	}
	return chat.Description, nil
}

// SendText sends text to chat id, split into several messages when it exceeds
// the Telegram length limit.
func (a *Adapter) SendText(ctx context.Context, id transport.ChatID, text string, opt *transport.SendOptions) error {
	if opt == nil {
		opt = &transport.SendOptions{ParseMode: a.cfg.ParseMode}
	}
	chat := &tele.Chat{ID: id}
	for _, chunk := range splitText(text, textLimit, opt.ParseMode) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
