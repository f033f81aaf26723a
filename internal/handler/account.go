package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/service"
)

// historyLimit is how many matches /matches lists.
const historyLimit = 10

// AccountHandler handles account-related commands.
type AccountHandler struct {
	ledger  *service.Ledger
	machine *service.SessionMachine
	games   *game.Registry
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger *service.Ledger, machine *service.SessionMachine, games *game.Registry) *AccountHandler {
	return &AccountHandler{
		ledger:  ledger,
		machine: machine,
		games:   games,
	}
}

// HandleStart handles /start [referral code].
// A referral code only counts when the account is created by this command.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	code := ""
	if args := c.Args(); len(args) > 0 {
		code = strings.TrimSpace(args[0])
	}
	username := displayName(sender)

	acct, created, err := h.ledger.EnsureAccount(ctx, sender.ID, username, code)
	if err != nil {
		return c.Reply(errorText(err, "start"))
	}

	if created {
		var b strings.Builder
		fmt.Fprintf(&b, "🎉 欢迎 @%s！\n\n您的账户已创建\n🔗 邀请码: %s\n\n可用游戏:\n", username, acct.ReferralCode)
		for _, g := range h.games.List() {
			fmt.Fprintf(&b, "/%s <金额> - %s\n", g.Command(), g.Description())
		}
		b.WriteString("\n/balance - 查看余额\n/my - 我的战绩\n/matches - 最近对局\n/pay @用户 <金额> - 转账")
		return c.Reply(b.String())
	}

	return c.Reply(fmt.Sprintf("👋 欢迎回来 @%s！\n\n当前余额: %s", username, formatMoney(acct.Balance)))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	acct, err := ensureSender(ctx, h.ledger, c)
	if err != nil {
		return c.Reply(errorText(err, "balance"))
	}
	return c.Reply(fmt.Sprintf("💰 当前余额: %s", formatMoney(acct.Balance)))
}

// HandleMy handles the /my command.
func (h *AccountHandler) HandleMy(c tele.Context) error {
	ctx := context.Background()
	acct, err := ensureSender(ctx, h.ledger, c)
	if err != nil {
		return c.Reply(errorText(err, "my"))
	}

	return c.Reply(fmt.Sprintf(
		"📊 我的信息\n\n"+
			"👤 用户: @%s\n"+
			"💰 余额: %s\n"+
			"🏆 胜 %d / 负 %d (胜率 %.1f%%)\n"+
			"🎲 总下注: %s\n"+
			"💵 总赢取: %s\n"+
			"🔗 邀请码: %s\n"+
			"🎁 邀请收益: %s",
		acct.Username, formatMoney(acct.Balance),
		acct.Wins, acct.Losses, acct.WinRate(),
		formatMoney(acct.TotalWagered), formatMoney(acct.TotalWon),
		acct.ReferralCode, formatMoney(acct.ReferralEarnings),
	))
}

// HandleMatches handles the /matches command.
func (h *AccountHandler) HandleMatches(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	matches, err := h.machine.MatchHistory(ctx, sender.ID, historyLimit)
	if err != nil {
		return c.Reply(errorText(err, "matches"))
	}
	if len(matches) == 0 {
		return c.Reply("📋 暂无对局记录")
	}

	var b strings.Builder
	b.WriteString("📋 最近对局\n━━━━━━━━━━━━━━━\n")
	for _, m := range matches {
		name := string(m.Kind)
		if g, err := h.games.Get(m.Kind); err == nil {
			name = g.Name()
		}
		result := "🤝 平局"
		switch {
		case m.Winner == nil:
		case *m.Winner == sender.ID:
			result = "✅ 胜 +" + formatMoney(m.Payout)
		default:
			result = "❌ 负 -" + formatMoney(m.Stake)
		}
		fmt.Fprintf(&b, "%s %s | %d:%d | %s\n",
			m.CreatedAt.Format("01-02 15:04"), name, m.ScoreA, m.ScoreB, result)
	}
	return c.Reply(b.String())
}

// parseUserID parses a numeric account id argument.
func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("❌ 用户ID格式错误，请输入数字")
	}
	return id, nil
}
