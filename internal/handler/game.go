package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/model"
	"telegram-wager-bot/internal/service"
)

// GameHandler handles wager placement and in-game actions.
type GameHandler struct {
	ledger   *service.Ledger
	registry *service.BetRegistry
	machine  *service.SessionMachine
	games    *game.Registry
	// byEmoji maps a dice emoji to its turn game.
	byEmoji map[string]model.GameKind
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(
	ledger *service.Ledger,
	registry *service.BetRegistry,
	machine *service.SessionMachine,
	games *game.Registry,
) *GameHandler {
	h := &GameHandler{
		ledger:   ledger,
		registry: registry,
		machine:  machine,
		games:    games,
		byEmoji:  make(map[string]model.GameKind),
	}
	for _, g := range games.List() {
		if tg, ok := g.(*dice.TurnGame); ok {
			h.byEmoji[tg.Emoji()] = tg.Kind()
		}
	}
	return h
}

// Commands returns the chat command of every registered game.
func (h *GameHandler) Commands() []string {
	games := h.games.List()
	cmds := make([]string, 0, len(games))
	for _, g := range games {
		cmds = append(cmds, "/"+g.Command())
	}
	return cmds
}

// HandlePlace handles /<game> <amount> [mode].
func (h *GameHandler) HandlePlace(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil || c.Message() == nil {
		return nil
	}

	fields := strings.Fields(c.Message().Text)
	if len(fields) == 0 {
		return nil
	}
	command, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	g, ok := h.games.ByCommand(command)
	if !ok {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply(fmt.Sprintf("❌ 用法: /%s <金额|all|half> [模式]\n例如: /%s 10", command, command))
	}
	mode := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return c.Reply("❌ 模式必须是数字")
		}
		mode = n
	}

	if _, err := ensureSender(ctx, h.ledger, c); err != nil {
		return c.Reply(errorText(err, "ensure_account"))
	}

	w, err := h.registry.PlaceWager(ctx, service.PlaceWagerRequest{
		ChatID:    chat.ID,
		AccountID: sender.ID,
		Amount:    args[0],
		Kind:      g.Kind(),
		Mode:      mode,
	})
	if err != nil {
		return c.Reply(errorText(err, "place_wager"))
	}

	return c.Reply(FormatWager(w, g, mention(displayName(sender), sender.ID)), WagerPanel(w, g))
}

// HandleCallback routes inline button presses.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	action, id, arg, ok := DecodeCallback(callbackData(c))
	if !ok {
		return c.Respond()
	}
	if c.Sender() == nil {
		return nil
	}

	log.Debug().Str("action", action).Str("id", id).Str("arg", arg).Int64("user_id", c.Sender().ID).Msg("Callback received")

	switch action {
	case ActionMode:
		return h.onMode(c, id, arg)
	case ActionAccept:
		return h.onAccept(c, id)
	case ActionHouse:
		return h.onHouse(c, id)
	case ActionCancel:
		return h.onCancel(c, id)
	case ActionSide:
		return h.onSide(c, id, arg)
	case ActionColumn:
		return h.onColumn(c, id, arg)
	case ActionCell:
		return h.onCell(c, id, arg)
	case ActionCash:
		return h.onCash(c, id)
	default:
		return alert(c, "❌ 无效操作")
	}
}

func (h *GameHandler) onMode(c tele.Context, wagerID, arg string) error {
	ctx := context.Background()
	mode, err := argInt(arg)
	if err != nil {
		return alert(c, "❌ 无效操作")
	}
	w, err := h.registry.SelectMode(ctx, wagerID, c.Sender().ID, mode)
	if err != nil {
		return alert(c, errorText(err, "select_mode"))
	}
	g, err := h.games.Get(w.Kind)
	if err != nil {
		return alert(c, errorText(err, "select_mode"))
	}
	if err := c.Edit(FormatWager(w, g, h.name(ctx, w.AccountID)), WagerPanel(w, g)); err != nil {
		log.Debug().Err(err).Msg("Failed to edit wager panel")
	}
	return c.Respond()
}

func (h *GameHandler) onAccept(c tele.Context, wagerID string) error {
	ctx := context.Background()
	if _, err := ensureSender(ctx, h.ledger, c); err != nil {
		return alert(c, errorText(err, "ensure_account"))
	}
	s, err := h.machine.AcceptWager(ctx, wagerID, c.Sender().ID)
	if err != nil {
		return alert(c, errorText(err, "accept_wager"))
	}
	return h.showSession(c, s, "⚔️ 挑战已接受！")
}

func (h *GameHandler) onHouse(c tele.Context, wagerID string) error {
	ctx := context.Background()
	s, err := h.machine.AcceptWagerVsHouse(ctx, wagerID, c.Sender().ID)
	if err != nil {
		return alert(c, errorText(err, "accept_vs_house"))
	}
	return h.showSession(c, s, "🏦 庄家应战！")
}

func (h *GameHandler) onCancel(c tele.Context, wagerID string) error {
	ctx := context.Background()
	if _, err := h.registry.CancelWager(ctx, wagerID, c.Sender().ID); err != nil {
		return alert(c, errorText(err, "cancel_wager"))
	}
	if err := c.Edit("🚫 挑战已取消"); err != nil {
		log.Debug().Err(err).Msg("Failed to edit wager panel")
	}
	return c.Respond()
}

func (h *GameHandler) onSide(c tele.Context, wagerID, arg string) error {
	ctx := context.Background()
	side, err := coinflip.ParseSide(arg)
	if err != nil {
		return alert(c, errorText(err, "pick_side"))
	}
	res, err := h.machine.PickSide(ctx, wagerID, c.Sender().ID, side)
	if err != nil {
		return alert(c, errorText(err, "pick_side"))
	}

	f := res.Flip
	verdict := "😢 输了"
	if res.Won {
		verdict = fmt.Sprintf("🎉 赢得 %s", formatMoney(res.Settlement.Payout))
	}
	text := fmt.Sprintf(
		"🪙 %s 选择了 %s\n结果: %s\n%s\n\n🔓 服务端种子: %s\n🔒 哈希: %s\n🎲 客户端种子: %s\n#️⃣ Nonce: %d\n\n验证: /verify %s",
		mention(displayName(c.Sender()), c.Sender().ID), sideName(f.Choice), sideName(f.Outcome), verdict,
		f.ServerSeed, f.ServerSeedHash, f.ClientSeed, f.Nonce, f.SessionID,
	)
	if err := c.Edit(text); err != nil {
		log.Debug().Err(err).Msg("Failed to edit coin flip panel")
	}
	return c.Respond()
}

func (h *GameHandler) onColumn(c tele.Context, sessionID, arg string) error {
	ctx := context.Background()
	col, err := argInt(arg)
	if err != nil {
		return alert(c, "❌ 无效操作")
	}
	res, err := h.machine.DropPiece(ctx, sessionID, c.Sender().ID, col)
	if err != nil {
		return alert(c, errorText(err, "drop_piece"))
	}
	h.showMove(c, res)
	return c.Respond()
}

func (h *GameHandler) onCell(c tele.Context, sessionID, arg string) error {
	ctx := context.Background()
	cell, err := argInt(arg)
	if err != nil {
		return alert(c, "❌ 无效操作")
	}
	res, err := h.machine.RevealCell(ctx, sessionID, c.Sender().ID, cell)
	if err != nil {
		return alert(c, errorText(err, "reveal_cell"))
	}
	h.showMove(c, &res.MoveResult)
	switch {
	case res.Mine:
		return c.Respond(&tele.CallbackResponse{Text: "💥 踩雷了！"})
	case res.AutoCashOut:
		return c.Respond(&tele.CallbackResponse{Text: "🏁 已自动提现"})
	default:
		return c.Respond(&tele.CallbackResponse{Text: "💎 x" + res.Multiplier.String()})
	}
}

func (h *GameHandler) onCash(c tele.Context, sessionID string) error {
	ctx := context.Background()
	res, err := h.machine.CashOut(ctx, sessionID, c.Sender().ID)
	if err != nil {
		return alert(c, errorText(err, "cash_out"))
	}
	h.showMove(c, res)
	return c.Respond()
}

// HandleVerify handles /verify <session_id>. It recomputes a settled coin
// flip from its revealed seeds.
func (h *GameHandler) HandleVerify(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /verify <对局ID>")
	}

	f, err := h.machine.CoinFlip(context.Background(), args[0])
	if err != nil {
		return c.Reply(errorText(err, "verify"))
	}

	status := "✅ 验证通过"
	if err := coinflip.Verify(f.FairCommit, f.Derived); err != nil {
		if !errors.Is(err, coinflip.ErrHashMismatch) && !errors.Is(err, coinflip.ErrOutcomeMismatch) {
			return c.Reply(errorText(err, "verify"))
		}
		log.Warn().Err(err).Str("session_id", f.SessionID).Msg("Coin flip failed verification")
		status = "⚠️ 验证失败"
	}

	return c.Reply(fmt.Sprintf(
		"%s\n\n🔓 服务端种子: %s\n🔒 哈希: %s\n🎲 客户端种子: %s\n#️⃣ Nonce: %d\n🧮 HMAC: %s\n🪙 推导结果: %s\n📌 记录结果: %s",
		status, f.ServerSeed, f.ServerSeedHash, f.ClientSeed, f.Nonce,
		coinflip.Digest(f.ServerSeed, f.ClientSeed, f.Nonce), sideName(f.Derived), sideName(f.Outcome),
	))
}

// HandleDice routes a dice-style emoji to the sender's live session.
func (h *GameHandler) HandleDice(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || msg.Dice == nil || sender == nil {
		return nil
	}
	// A forwarded dice was rolled by someone else.
	if msg.IsForwarded() {
		return nil
	}
	kind, ok := h.byEmoji[string(msg.Dice.Type)]
	if !ok {
		return nil
	}

	sess, err := h.machine.ActiveSession(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return nil
		}
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to look up active session")
		return nil
	}
	if sess.Kind != kind {
		return nil
	}

	res, err := h.machine.SubmitRoll(ctx, sess.ID, sender.ID, kind, msg.Dice.Value)
	if err != nil {
		return c.Reply(errorText(err, "submit_roll"))
	}
	// Nothing to announce until the opponent rolls.
	if !res.RoundResolved {
		return nil
	}

	var b strings.Builder
	if res.HouseRoll != nil {
		fmt.Fprintf(&b, "🏦 庄家: %d\n", *res.HouseRoll)
	}
	switch res.RoundWinner {
	case dice.SideA:
		fmt.Fprintf(&b, "本轮 %d : %d，%s 得分\n", res.RoundA, res.RoundB, h.name(ctx, res.Session.ParticipantA))
	case dice.SideB:
		fmt.Fprintf(&b, "本轮 %d : %d，%s 得分\n", res.RoundA, res.RoundB, h.name(ctx, res.Session.ParticipantB))
	default:
		fmt.Fprintf(&b, "本轮 %d : %d，平局\n", res.RoundA, res.RoundB)
	}
	b.WriteString(FormatSession(res.Session, h.names(ctx, res.Session)))
	if res.Settlement != nil {
		b.WriteString("\n\n")
		b.WriteString(h.formatSettlement(ctx, res.Settlement))
	}
	return c.Reply(b.String())
}

func (h *GameHandler) showSession(c tele.Context, s *model.Session, header string) error {
	ctx := context.Background()
	text := header + "\n\n" + FormatSession(s, h.names(ctx, s))

	var opts []interface{}
	switch {
	case s.Grid != nil:
		opts = append(opts, GridPanel(s))
	case s.Field != nil:
		opts = append(opts, FieldPanel(s))
	default:
		if g, err := h.games.Get(s.Kind); err == nil {
			if tg, ok := g.(*dice.TurnGame); ok {
				text += fmt.Sprintf("\n\n请发送 %s 进行游戏", tg.Emoji())
			}
		}
	}
	if err := c.Edit(text, opts...); err != nil {
		log.Debug().Err(err).Msg("Failed to edit wager panel")
	}
	return c.Respond()
}

func (h *GameHandler) showMove(c tele.Context, res *service.MoveResult) {
	ctx := context.Background()
	s := res.Session
	text := FormatSession(s, h.names(ctx, s))

	var opts []interface{}
	if res.Settlement != nil {
		text += "\n\n" + h.formatSettlement(ctx, res.Settlement)
	} else if s.Grid != nil {
		opts = append(opts, GridPanel(s))
	} else if s.Field != nil {
		opts = append(opts, FieldPanel(s))
	}
	if err := c.Edit(text, opts...); err != nil {
		log.Debug().Err(err).Msg("Failed to edit session panel")
	}
}

func (h *GameHandler) formatSettlement(ctx context.Context, st *service.Settlement) string {
	if st.Winner == nil {
		return "🤝 平局，双方退还下注"
	}
	text := fmt.Sprintf("🏆 %s 获胜", h.name(ctx, *st.Winner))
	if st.Payout.IsPositive() {
		text += "，获得 " + formatMoney(st.Payout)
	}
	if st.Fee.IsPositive() {
		text += fmt.Sprintf("（手续费 %s）", formatMoney(st.Fee))
	}
	return text
}

func (h *GameHandler) names(ctx context.Context, s *model.Session) map[int64]string {
	return map[int64]string{
		s.ParticipantA: h.name(ctx, s.ParticipantA),
		s.ParticipantB: h.name(ctx, s.ParticipantB),
	}
}

func (h *GameHandler) name(ctx context.Context, id int64) string {
	if id == h.machine.HouseAccountID() {
		return "🏦 庄家"
	}
	acct, err := h.ledger.GetAccount(ctx, id)
	if err != nil {
		return mention("", id)
	}
	return mention(acct.Username, id)
}

func sideName(s model.CoinSide) string {
	if s == model.Heads {
		return "正面"
	}
	return "反面"
}
