package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"rsi_bot/internal/models"
	capitalsvc "rsi_bot/internal/modules/capital_client/service"
)

func formatSignal(sig models.Signal) string {
	return fmt.Sprintf(
		"%s\nRSI: %s\nСигнал: %s\nПозиция: %s",
		sig.Instrument, f2(sig.RSI), sig.Label, sig.Position,
	)
}

// сколько последних свечей показываем в чате
const chartTail = 5

func formatChart(ch models.Chart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕯 %s %s, свечей: %d\n", ch.Instrument, ch.Resolution, len(ch.Prices))
	if ch.HasRSI {
		fmt.Fprintf(&b, "RSI: %s\n", f2(ch.RSI))
	} else {
		b.WriteString("RSI: мало данных\n")
	}

	from := len(ch.Prices) - chartTail
	if from < 0 {
		from = 0
	}
	for _, p := range ch.Prices[from:] {
		fmt.Fprintf(&b, "%s  O %s H %s L %s C %s\n",
			p.Time().UTC().Format("01-02 15:04"), f2(p.Open), f2(p.High), f2(p.Low), f2(p.Close))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(selected string, mem map[string]models.Memory) string {
	var b strings.Builder
	if selected == "" {
		selected = "—"
	}
	fmt.Fprintf(&b, "📊 Торгуем: %s\n", selected)
	if len(mem) == 0 {
		b.WriteString("Тиков ещё не было")
		return b.String()
	}

	keys := make([]string, 0, len(mem))
	for k := range mem {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m := mem[k]
		rsi := "—"
		if m.HasRSI {
			rsi = f2(m.LastRSI)
		}
		fmt.Fprintf(&b, "\n%s: %s, RSI %s", k, m.CurrentPosition(), rsi)
		if !m.UpdatedAt.IsZero() {
			fmt.Fprintf(&b, " (%s назад)", time.Since(m.UpdatedAt).Truncate(time.Second))
		}
	}
	return b.String()
}

func formatSelected(inst string, m *capitalsvc.Market) string {
	msg := "✅ Торгуем " + inst + " со следующего тика"
	if m != nil {
		msg += fmt.Sprintf("\n%s: bid %s / offer %s, %s", m.Name, f2(m.Bid), f2(m.Offer), m.Status)
	}
	return msg
}

func formatCategories(cats []capitalsvc.Category) string {
	if len(cats) == 0 {
		return "Категорий не нашлось"
	}
	var b strings.Builder
	b.WriteString("🗂 Категории рынков:")
	for _, c := range cats {
		fmt.Fprintf(&b, "\n%s: /markets %s", c.Name, c.ID)
	}
	return b.String()
}

// больше в одно сообщение не влезает без пользы
const marketsInChat = 30

func formatListing(node string, l capitalsvc.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 %s", node)
	for _, n := range l.Nodes {
		fmt.Fprintf(&b, "\n📁 %s: /markets %s", n.Name, n.ID)
	}
	for i, m := range l.Markets {
		if i == marketsInChat {
			fmt.Fprintf(&b, "\n... и ещё %d", len(l.Markets)-marketsInChat)
			break
		}
		fmt.Fprintf(&b, "\n%s (%s) %s / %s %+.2f%%", m.Epic, m.Name, f2(m.Bid), f2(m.Offer), m.PercentageChange)
	}
	if len(l.Nodes) == 0 && len(l.Markets) == 0 {
		b.WriteString("\nпусто")
	}
	if len(l.Markets) > 0 {
		b.WriteString("\n\nВыбрать: /select EPIC")
	}
	return b.String()
}

func formatAccounts(env string, accs []capitalsvc.Account) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 Счета (%s):", env)
	if len(accs) == 0 {
		b.WriteString("\nнет счетов")
		return b.String()
	}
	for _, a := range accs {
		mark := "▫️"
		if a.Current {
			mark = "✅"
		}
		fmt.Fprintf(&b, "\n%s %s %s %s: %s %s, доступно %s",
			mark, a.ID, a.Name, a.Type, f2(a.Balance), a.Currency, f2(a.Available))
	}
	b.WriteString("\n\nПереключить: /account ID")
	return b.String()
}
