package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/docshelf/core/logger"
	"github.com/m3rciful/docshelf/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// sendAsync hands run to the dispatcher, or runs it inline when none is set
// or its queue is unavailable. The response is counted at enqueue time so the
// handler summary sees it.
func sendAsync(c tele.Context, action, endpoint string, kb bool, run func() error) error {
	noteSent(c, kb)
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	_, key, _ := UpdateIDs(c)
	if err := disp.Enqueue(ctx, key, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", sendOpts != nil && sendOpts.ReplyMarkup != nil, func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm}
	return SendText(c, text, opts)
}

// SendDocument re-sends a file already stored by Telegram, referenced by its file id.
func SendDocument(c tele.Context, fileID, caption string) error {
	doc := &tele.Document{File: tele.File{FileID: fileID}, Caption: caption}
	return sendAsync(c, "send.document", "sendDocument", false, func() error {
		return c.Send(doc)
	})
}

// SendInvoice sends a payment invoice to the current chat.
func SendInvoice(c tele.Context, inv tele.Invoice) error {
	return sendAsync(c, "send.invoice", "sendInvoice", false, func() error {
		return c.Send(&inv)
	})
}
