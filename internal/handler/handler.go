// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/service"
)

// errorTexts maps user-facing errors to replies. Order matters where one
// error wraps another.
var errorTexts = []struct {
	err  error
	text string
}{
	{service.ErrInvalidAmount, "❌ 金额无效，请输入正数、all 或 half"},
	{service.ErrInsufficientFunds, "❌ 余额不足"},
	{service.ErrSelfTransfer, "❌ 不能给自己转账"},
	{service.ErrSelfAccept, "❌ 不能接受自己的挑战"},
	{service.ErrUnsupported, "❌ 该游戏不支持这种玩法"},
	{service.ErrWagerNotFound, "❌ 该挑战已不存在"},
	{service.ErrSessionNotFound, "❌ 该对局已结束"},
	{service.ErrCoinFlipNotFound, "❌ 找不到该抛硬币记录"},
	{service.ErrAlreadyActive, "❌ 你已有进行中的挑战或对局"},
	{service.ErrNotOwner, "❌ 只有发起人可以这样做"},
	{service.ErrNotParticipant, "❌ 你不在这局游戏中"},
	{service.ErrNotYourTurn, "❌ 还没轮到你"},
	{service.ErrAlreadyActed, "❌ 本轮你已经出手了"},
	{service.ErrModeNotSelected, "❌ 请先选择模式"},
	{service.ErrWrongGame, "❌ 该操作不适用于这局游戏"},
	{service.ErrNothingToCashOut, "❌ 至少翻开一个安全格子才能提现"},
	{service.ErrBusy, "⏳ 操作繁忙，请稍后重试"},
	{game.ErrUnknownGame, "❌ 未知游戏"},
	{game.ErrInvalidMode, "❌ 模式无效"},
	{game.ErrModeNotApplicable, "❌ 该游戏没有可选模式"},
	{game.ErrStakeOutOfRange, "❌ 下注金额超出庄家允许范围"},
	{dice.ErrInvalidRoll, "❌ 点数无效"},
	{connect4.ErrInvalidColumn, "❌ 列号无效"},
	{connect4.ErrColumnFull, "❌ 该列已满"},
	{mines.ErrInvalidCell, "❌ 格子无效"},
	{mines.ErrCellRevealed, "❌ 该格子已翻开"},
	{coinflip.ErrInvalidSide, "❌ 请选择正面或反面"},
	{coinflip.ErrSeedNotRevealed, "❌ 服务端种子尚未公开"},
}

// errorText returns the reply for err. Faults that are not the user's doing
// are logged and answered with a generic message.
func errorText(err error, op string) string {
	for _, e := range errorTexts {
		if errors.Is(err, e.err) {
			return e.text
		}
	}
	if service.IsUserFacing(err) {
		return "❌ " + err.Error()
	}
	log.Error().Err(err).Str("operation", op).Msg("Handler operation failed")
	return "❌ 操作失败，请稍后重试"
}

// displayName returns the sender's @username or first name.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// formatMoney renders an amount with two decimals.
func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// ensureSender registers the sender, keeping the stored username current.
func ensureSender(ctx context.Context, ledger *service.Ledger, c tele.Context) (*model.Account, error) {
	sender := c.Sender()
	if sender == nil {
		return nil, errors.New("no sender")
	}
	acct, _, err := ledger.EnsureAccount(ctx, sender.ID, displayName(sender), "")
	return acct, err
}

// callbackData strips the marker telebot prepends to unique callbacks.
func callbackData(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	return strings.TrimPrefix(cb.Data, "\f")
}

// alert answers a callback with a popup.
func alert(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

func mention(username string, id int64) string {
	if username == "" {
		return fmt.Sprintf("用户%d", id)
	}
	return "@" + username
}
