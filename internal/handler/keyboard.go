package handler

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/model"
)

// CallbackPrefix is the prefix of all wager callback data.
const CallbackPrefix = "wg_"

// Callback actions. Wager actions carry a wager id, session actions a session id.
const (
	ActionMode   = "mode"
	ActionAccept = "accept"
	ActionHouse  = "house"
	ActionCancel = "cancel"
	ActionSide   = "side"
	ActionColumn = "col"
	ActionCell   = "cell"
	ActionCash   = "cash"
)

// EncodeCallback encodes an action, target id and optional argument.
// The result stays under Telegram's 64 byte limit for uuid ids.
func EncodeCallback(action, id, arg string) string {
	if arg != "" {
		return fmt.Sprintf("%s%s_%s:%s", CallbackPrefix, action, id, arg)
	}
	return fmt.Sprintf("%s%s_%s", CallbackPrefix, action, id)
}

// DecodeCallback splits callback data into its parts. ok is false for data
// that is not a wager callback.
func DecodeCallback(data string) (action, id, arg string, ok bool) {
	content, found := strings.CutPrefix(data, CallbackPrefix)
	if !found {
		return "", "", "", false
	}
	action, rest, found := strings.Cut(content, "_")
	if !found || rest == "" {
		return "", "", "", false
	}
	id, arg, _ = strings.Cut(rest, ":")
	return action, id, arg, true
}

// argInt parses a numeric callback argument.
func argInt(arg string) (int, error) {
	return strconv.Atoi(arg)
}

// WagerPanel builds the buttons shown under a pending wager.
func WagerPanel(w *model.PendingWager, g game.Game) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton

	switch g.Variant() {
	case game.TurnSequenced:
		row := make([]tele.InlineButton, 0, dice.MaxRequiredWins)
		for n := dice.MinRequiredWins; n <= dice.MaxRequiredWins; n++ {
			text := fmt.Sprintf("先得%d分", n)
			if w.Mode == n {
				text = "✅ " + text
			}
			row = append(row, tele.InlineButton{Text: text, Data: EncodeCallback(ActionMode, w.ID, strconv.Itoa(n))})
		}
		rows = append(rows, row,
			[]tele.InlineButton{
				{Text: "⚔️ 接受挑战", Data: EncodeCallback(ActionAccept, w.ID, "")},
				{Text: "🏦 挑战庄家", Data: EncodeCallback(ActionHouse, w.ID, "")},
			})
	case game.Grid:
		rows = append(rows, []tele.InlineButton{
			{Text: "⚔️ 接受挑战", Data: EncodeCallback(ActionAccept, w.ID, "")},
		})
	case game.ProgressiveReveal:
		var row []tele.InlineButton
		for n := 1; n <= 5; n++ {
			if g.ValidateMode(n) != nil {
				continue
			}
			text := fmt.Sprintf("💣%d", n)
			if w.Mode == n {
				text = "✅ " + text
			}
			row = append(row, tele.InlineButton{Text: text, Data: EncodeCallback(ActionMode, w.ID, strconv.Itoa(n))})
		}
		rows = append(rows, row, []tele.InlineButton{
			{Text: "🚀 开始", Data: EncodeCallback(ActionHouse, w.ID, "")},
		})
	case game.CommitReveal:
		rows = append(rows, []tele.InlineButton{
			{Text: "🪙 正面", Data: EncodeCallback(ActionSide, w.ID, string(model.Heads))},
			{Text: "🪙 反面", Data: EncodeCallback(ActionSide, w.ID, string(model.Tails))},
		})
	}

	rows = append(rows, []tele.InlineButton{
		{Text: "❌ 取消", Data: EncodeCallback(ActionCancel, w.ID, "")},
	})
	markup.InlineKeyboard = rows
	return markup
}

// GridPanel builds one drop button per column.
func GridPanel(s *model.Session) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	row := make([]tele.InlineButton, 0, s.Grid.Cols)
	for col := 0; col < s.Grid.Cols; col++ {
		if connect4.At(s.Grid, 0, col) != connect4.Empty {
			continue
		}
		row = append(row, tele.InlineButton{
			Text: strconv.Itoa(col + 1),
			Data: EncodeCallback(ActionColumn, s.ID, strconv.Itoa(col)),
		})
	}
	markup.InlineKeyboard = [][]tele.InlineButton{row}
	return markup
}

// FieldPanel builds one button per hidden cell plus the cash-out button.
func FieldPanel(s *model.Session) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	f := s.Field
	revealed := make(map[int]bool, len(f.Revealed))
	for _, c := range f.Revealed {
		revealed[c] = true
	}

	rows := make([][]tele.InlineButton, 0, f.Rows+1)
	for r := 0; r < f.Rows; r++ {
		row := make([]tele.InlineButton, 0, f.Cols)
		for c := 0; c < f.Cols; c++ {
			cell := r*f.Cols + c
			btn := tele.InlineButton{Text: "⬜", Data: EncodeCallback(ActionCell, s.ID, strconv.Itoa(cell))}
			if revealed[cell] {
				btn.Text = "💎"
			}
			row = append(row, btn)
		}
		rows = append(rows, row)
	}
	if f.SafeHits > 0 {
		rows = append(rows, []tele.InlineButton{
			{Text: "💰 提现", Data: EncodeCallback(ActionCash, s.ID, "")},
		})
	}
	markup.InlineKeyboard = rows
	return markup
}

// FormatWager describes a pending wager.
func FormatWager(w *model.PendingWager, g game.Game, placer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 %s\n", g.Name())
	fmt.Fprintf(&b, "👤 %s 下注 %s\n", placer, formatMoney(w.Amount))

	switch g.Variant() {
	case game.TurnSequenced:
		if w.Mode == 0 {
			b.WriteString("请选择获胜所需分数")
		} else {
			fmt.Fprintf(&b, "🏆 先得 %d 分者获胜", w.Mode)
		}
	case game.Grid:
		b.WriteString("等待对手接受挑战")
	case game.ProgressiveReveal:
		fmt.Fprintf(&b, "💣 地雷数: %d", w.Mode)
	case game.CommitReveal:
		if w.Commit != nil {
			pub := w.Commit.Published()
			fmt.Fprintf(&b, "🔒 服务端种子哈希: %s\n🎲 客户端种子: %s\n#️⃣ Nonce: %d\n请选择正面或反面",
				pub.ServerSeedHash, pub.ClientSeed, pub.Nonce)
		}
	}
	return b.String()
}

// FormatSession describes the current state of a live session.
func FormatSession(s *model.Session, names map[int64]string) string {
	var b strings.Builder
	switch {
	case s.Grid != nil:
		fmt.Fprintf(&b, "🔴 %s vs 🟡 %s\n\n", names[s.ParticipantA], names[s.ParticipantB])
		b.WriteString(connect4.Render(s.Grid))
		if !s.Status.Terminal() {
			fmt.Fprintf(&b, "\n轮到 %s", names[s.TurnHolder])
		}
	case s.Field != nil:
		fmt.Fprintf(&b, "💣 %s 的扫雷 | 下注 %s | 地雷 %d\n", names[s.ParticipantA], formatMoney(s.Stake), s.Field.MineCount)
		fmt.Fprintf(&b, "💎 安全格子: %d\n\n", s.Field.SafeHits)
		b.WriteString(mines.Render(s.Field, s.Status.Terminal()))
	default:
		fmt.Fprintf(&b, "⚔️ %s %d : %d %s\n", names[s.ParticipantA], s.ScoreA, s.ScoreB, names[s.ParticipantB])
		fmt.Fprintf(&b, "🏆 先得 %d 分 | 第 %d 轮 | 下注 %s", s.RequiredWins, s.RoundIndex, formatMoney(s.Stake))
		if !s.Status.Terminal() && !s.VsHouse {
			fmt.Fprintf(&b, "\n轮到 %s", names[s.TurnHolder])
		}
	}
	return b.String()
}
