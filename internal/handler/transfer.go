package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/pkg/money"
	"telegram-wager-bot/internal/service"
)

// TransferHandler handles transfer-related commands.
type TransferHandler struct {
	ledger *service.Ledger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(ledger *service.Ledger) *TransferHandler {
	return &TransferHandler{ledger: ledger}
}

// HandlePay handles the /pay command.
// Format: /pay @username amount, or /pay amount as a reply to the recipient.
func (h *TransferHandler) HandlePay(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil {
		return nil
	}

	args := c.Args()
	var (
		targetID   int64
		targetName string
		amountArg  string
	)
	switch {
	case len(args) >= 2 && strings.HasPrefix(args[0], "@"):
		targetName = strings.TrimPrefix(args[0], "@")
		amountArg = args[1]
		for _, entity := range msg.Entities {
			if entity.User != nil && (entity.Type == tele.EntityMention || entity.Type == tele.EntityTMention) &&
				strings.EqualFold(entity.User.Username, targetName) {
				targetID = entity.User.ID
				break
			}
		}
		if targetID == 0 && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil &&
			strings.EqualFold(msg.ReplyTo.Sender.Username, targetName) {
			targetID = msg.ReplyTo.Sender.ID
		}
	case len(args) == 1 && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil:
		targetID = msg.ReplyTo.Sender.ID
		targetName = displayName(msg.ReplyTo.Sender)
		amountArg = args[0]
	default:
		return c.Reply("❌ 用法: /pay @用户名 金额\n例如: /pay @alice 10.50\n或回复对方消息: /pay 10")
	}

	// Telegram cannot resolve a bare @username to an id.
	if targetID == 0 {
		return c.Reply("❌ 找不到用户 @" + targetName + "\n请回复该用户的消息进行转账")
	}

	from, err := ensureSender(ctx, h.ledger, c)
	if err != nil {
		return c.Reply(errorText(err, "pay"))
	}
	amount, err := money.Parse(amountArg, from.Balance, h.ledger.Places())
	if err != nil {
		return c.Reply(errorText(err, "pay"))
	}

	if err := h.ledger.Transfer(ctx, sender.ID, targetID, amount); err != nil {
		return c.Reply(errorText(err, "pay"))
	}

	acct, err := h.ledger.GetAccount(ctx, sender.ID)
	if err != nil {
		return c.Reply(errorText(err, "pay"))
	}
	return c.Reply(fmt.Sprintf(
		"✅ 转账成功\n\n"+
			"📤 转给: %s\n"+
			"💸 金额: %s\n"+
			"💰 当前余额: %s",
		mention(targetName, targetID), formatMoney(amount), formatMoney(acct.Balance),
	))
}
