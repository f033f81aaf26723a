package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/pkg/money"
	"telegram-wager-bot/internal/service"
)

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	ledger *service.Ledger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger *service.Ledger) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// HandleAdminAdd handles the /admin_add command.
// Format: /admin_add <user_id> <amount>
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	targetID, amount, err := h.parseAdminArgs(c, "admin_add")
	if err != nil {
		return c.Reply(err.Error())
	}

	acct, err := h.ledger.Credit(context.Background(), targetID, amount)
	if err != nil {
		return c.Reply(errorText(err, "admin_add"))
	}
	h.audit(c, "admin_add", targetID, amount)

	return c.Reply(fmt.Sprintf(
		"✅ 操作成功\n\n👤 用户: %s\n➕ 添加: %s\n💰 当前余额: %s",
		mention(acct.Username, targetID), formatMoney(amount), formatMoney(acct.Balance),
	))
}

// HandleAdminSub handles the /admin_sub command. The balance stops at zero.
// Format: /admin_sub <user_id> <amount>
func (h *AdminHandler) HandleAdminSub(c tele.Context) error {
	targetID, amount, err := h.parseAdminArgs(c, "admin_sub")
	if err != nil {
		return c.Reply(err.Error())
	}

	acct, err := h.ledger.Adjust(context.Background(), targetID, amount.Neg())
	if err != nil {
		return c.Reply(errorText(err, "admin_sub"))
	}
	h.audit(c, "admin_sub", targetID, amount)

	return c.Reply(fmt.Sprintf(
		"✅ 操作成功\n\n👤 用户: %s\n➖ 扣除: %s\n💰 当前余额: %s",
		mention(acct.Username, targetID), formatMoney(amount), formatMoney(acct.Balance),
	))
}

// HandleAdminWithdraw handles the /admin_withdraw command. It books a payout
// made outside the bot and charges the withdrawal fee.
// Format: /admin_withdraw <user_id> <amount>
func (h *AdminHandler) HandleAdminWithdraw(c tele.Context) error {
	targetID, amount, err := h.parseAdminArgs(c, "admin_withdraw")
	if err != nil {
		return c.Reply(err.Error())
	}

	res, err := h.ledger.Withdraw(context.Background(), targetID, amount)
	if err != nil {
		return c.Reply(errorText(err, "admin_withdraw"))
	}
	h.audit(c, "admin_withdraw", targetID, amount)

	return c.Reply(fmt.Sprintf(
		"✅ 提现已登记\n\n👤 用户: %s\n💸 金额: %s\n🧾 手续费: %s\n📦 实付: %s\n💰 当前余额: %s",
		mention(res.Account.Username, targetID), formatMoney(res.Amount), formatMoney(res.Fee),
		formatMoney(res.Net), formatMoney(res.Account.Balance),
	))
}

// HandleProfits handles the /profits command.
func (h *AdminHandler) HandleProfits(c tele.Context) error {
	p, err := h.ledger.Profits(context.Background())
	if err != nil {
		return c.Reply(errorText(err, "profits"))
	}
	return c.Reply(fmt.Sprintf(
		"📈 平台收益\n\n🎮 游戏手续费: %s\n🏧 提现手续费: %s\n💰 总收益: %s",
		formatMoney(p.GameFee), formatMoney(p.WithdrawalFee), formatMoney(p.TotalProfit),
	))
}

// parseAdminArgs parses <user_id> <amount>.
func (h *AdminHandler) parseAdminArgs(c tele.Context, command string) (int64, decimal.Decimal, error) {
	args := c.Args()
	if len(args) < 2 {
		return 0, decimal.Zero, fmt.Errorf("❌ 用法: /%s <用户ID> <金额>\n例如: /%s 123456789 100", command, command)
	}

	targetID, err := parseUserID(args[0])
	if err != nil {
		return 0, decimal.Zero, err
	}

	amount, err := money.Parse(args[1], decimal.Zero, h.ledger.Places())
	if err != nil || !amount.IsPositive() {
		return 0, decimal.Zero, fmt.Errorf("❌ 金额必须大于 0")
	}
	return targetID, amount, nil
}

func (h *AdminHandler) audit(c tele.Context, op string, targetID int64, amount decimal.Decimal) {
	log.Info().
		Int64("admin_id", c.Sender().ID).
		Int64("target_id", targetID).
		Str("amount", amount.String()).
		Str("operation", op).
		Msg("Admin operation executed")
}
