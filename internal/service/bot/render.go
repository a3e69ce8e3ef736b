package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/service/catalog"
	"github.com/mamadbah2/toolstock/internal/service/session"
	"github.com/mamadbah2/toolstock/internal/service/wizard"
)

const notSpecified = "not specified"

const helpText = "I did not understand that. Use the menu below, or send /add to register an instrument, /search <text> to find one, /list to browse."

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func keyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func menuRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{button("🏠 Menu", cbMenu)}
}

func orPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return notSpecified
	}
	return html.EscapeString(v)
}

func quantityWithUnit(rec models.Instrument) string {
	if rec.Unit == "" {
		return rec.QuantityText()
	}
	return rec.QuantityText() + " " + html.EscapeString(rec.Unit)
}

func menuReply() models.Reply {
	return models.Reply{
		Text: "🧰 <b>Tool inventory</b>\nChoose an action:",
		Keyboard: keyboard(
			[]models.InlineKeyboardButton{button("📋 View inventory", token(cbList, 0))},
			[]models.InlineKeyboardButton{button("🔍 Search", cbSearch), button("➕ Add instrument", cbAdd)},
			[]models.InlineKeyboardButton{button("🔗 Sheet link", cbLink), button("🔄 Sync", cbSync)},
		),
	}
}

func helpReply() models.Reply {
	reply := menuReply()
	reply.Text = helpText
	return reply
}

// renderCard lists every field of an instrument. hasPhoto reports a stored
// photo for instruments without an image link.
func renderCard(rec models.Instrument, hasPhoto bool) string {
	image := notSpecified
	switch {
	case rec.ImageURL != "":
		image = html.EscapeString(rec.ImageURL)
	case hasPhoto:
		image = "photo attached"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>№%d %s</b>\n", rec.Number, html.EscapeString(rec.Name))
	fmt.Fprintf(&b, "Quantity: %s\n", quantityWithUnit(rec))
	fmt.Fprintf(&b, "Model: %s\n", orPlaceholder(rec.Model))
	fmt.Fprintf(&b, "Manufacturer: %s\n", orPlaceholder(rec.Manufacturer))
	fmt.Fprintf(&b, "Characteristics: %s\n", orPlaceholder(rec.Characteristics))
	fmt.Fprintf(&b, "Image: %s", image)
	if rec.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", html.EscapeString(rec.Location))
	}
	return b.String()
}

func cardKeyboard(number int) *models.InlineKeyboardMarkup {
	return keyboard(
		[]models.InlineKeyboardButton{button("✏️ Edit amount", token(cbEdit, number)), button("🗑 Delete", token(cbDelete, number))},
		[]models.InlineKeyboardButton{button("⬅️ Back", cbBack), button("🏠 Menu", cbMenu)},
	)
}

// renderPage builds a list or search result page. Items are labelled with
// their display rank; the buttons address them by number.
func renderPage(title string, page catalog.Page, pageKind string) models.Reply {
	var rows [][]models.InlineKeyboardButton
	for i, rec := range page.Items {
		label := fmt.Sprintf("%d. %s (%s)", page.Offset+i+1, rec.Name, rec.QuantityText())
		rows = append(rows, []models.InlineKeyboardButton{button(label, token(cbItem, rec.Number))})
	}

	if page.Pages > 1 {
		var nav []models.InlineKeyboardButton
		if page.HasPrev() {
			nav = append(nav, button("◀️", token(pageKind, page.Page-1)))
		}
		nav = append(nav, button(fmt.Sprintf("%d/%d", page.Page+1, page.Pages), cbNoop))
		if page.HasNext() {
			nav = append(nav, button("▶️", token(pageKind, page.Page+1)))
		}
		rows = append(rows, nav)
	}
	rows = append(rows, menuRow())

	return models.Reply{Text: title, Keyboard: keyboard(rows...)}
}

func listReply(page catalog.Page) models.Reply {
	if page.Total == 0 {
		return models.Reply{Text: "The inventory is empty.", Keyboard: keyboard(menuRow())}
	}
	title := fmt.Sprintf("📋 <b>Inventory</b>: %d instruments", page.Total)
	return renderPage(title, page, cbList)
}

func searchReply(term string, page catalog.Page) models.Reply {
	if page.Total == 0 {
		return models.Reply{
			Text:     fmt.Sprintf("Nothing found for “%s”.", html.EscapeString(term)),
			Keyboard: keyboard([]models.InlineKeyboardButton{button("🔍 Search again", cbSearch)}, menuRow()),
		}
	}
	title := fmt.Sprintf("🔍 Results for “%s”: %d found", html.EscapeString(term), page.Total)
	return renderPage(title, page, cbResults)
}

var stepPrompts = map[session.Step]string{
	wizard.StepName:            "Enter the instrument name (at least 2 characters):",
	wizard.StepModel:           "Enter the model, or skip:",
	wizard.StepManufacturer:    "Enter the manufacturer, or skip:",
	wizard.StepQuantity:        "Enter the quantity (a number, 0 or more):",
	wizard.StepImage:           "Send a photo or an image link starting with http:// or https://, or skip:",
	wizard.StepCharacteristics: "Enter the characteristics, or skip:",
}

var stepOrder = []session.Step{
	wizard.StepName,
	wizard.StepModel,
	wizard.StepManufacturer,
	wizard.StepQuantity,
	wizard.StepImage,
	wizard.StepCharacteristics,
}

// currentValue is what the draft already holds for step, so a user coming
// back to a step sees what they typed before.
func currentValue(step session.Step, d models.Draft) string {
	switch step {
	case wizard.StepName:
		return d.Name
	case wizard.StepModel:
		return d.Model
	case wizard.StepManufacturer:
		return d.Manufacturer
	case wizard.StepQuantity:
		if d.HasQuantity {
			return models.FormatQuantity(d.Quantity)
		}
	case wizard.StepImage:
		if d.PhotoFileID != "" {
			return "photo received"
		}
		return d.ImageURL
	case wizard.StepCharacteristics:
		return d.Characteristics
	}
	return ""
}

func stepNumber(step session.Step) int {
	for i, s := range stepOrder {
		if s == step {
			return i + 1
		}
	}
	return 0
}

func promptKeyboard(step session.Step) *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton
	if wizard.Optional(step) {
		row = append(row, button("⏭ Skip", stepToken(cbSkip, step)))
	}
	if wizard.HasPrevious(step) {
		row = append(row, button("⬅️ Back", stepToken(cbStepBack, step)))
	}
	row = append(row, button("✖️ Cancel", cbCancel))
	return keyboard(row)
}

func promptReply(out wizard.Outcome) models.Reply {
	if out.Step == wizard.StepAwaitingAmount {
		return amountPrompt(out)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "➕ <b>New instrument</b>, step %d of %d\n", stepNumber(out.Step), len(stepOrder))
	if v := currentValue(out.Step, out.Draft); v != "" {
		fmt.Fprintf(&b, "Current value: %s\n", html.EscapeString(v))
	}
	b.WriteString(stepPrompts[out.Step])
	return models.Reply{Text: b.String(), Keyboard: promptKeyboard(out.Step)}
}

func amountPrompt(out wizard.Outcome) models.Reply {
	name := out.Record.Name
	if name == "" {
		name = fmt.Sprintf("№%d", out.Target)
	}
	text := fmt.Sprintf("Enter the new amount for <b>%s</b> (now %s):", html.EscapeString(name), out.Record.QuantityText())
	return models.Reply{Text: text, Keyboard: keyboard([]models.InlineKeyboardButton{button("✖️ Cancel", cbCancel)})}
}

func invalidReply(out wizard.Outcome) models.Reply {
	prompt := promptReply(out)
	if out.Step == wizard.StepAwaitingAmount {
		prompt.Text = "Enter the new amount (a number, 0 or more):"
	}
	prompt.Text = fmt.Sprintf("⚠️ %s\n\n%s", html.EscapeString(problemText(out.Problem)), prompt.Text)
	return prompt
}

func problemText(err error) string {
	if err == nil {
		return "invalid input"
	}
	msg := err.Error()
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

func syncLine(synced, remote bool) string {
	switch {
	case !remote:
		return "💾 Saved to the local file."
	case synced:
		return "☁️ Saved and synced to the remote copy."
	default:
		return "💾 Saved locally, sync pending."
	}
}

func savedReply(out wizard.Outcome, hasPhoto, remote bool) models.Reply {
	var b strings.Builder
	b.WriteString("✅ <b>Instrument saved</b>\n\n")
	b.WriteString(renderCard(out.Record, hasPhoto))
	b.WriteString("\n\n")
	b.WriteString(syncLine(out.Synced, remote))
	if out.ImageErr != nil {
		fmt.Fprintf(&b, "\n⚠️ The photo was not stored: %s", html.EscapeString(out.ImageErr.Error()))
	}
	return models.Reply{
		Text: b.String(),
		Keyboard: keyboard(
			[]models.InlineKeyboardButton{button("➕ Add another", cbAdd), button("📋 View", token(cbItem, out.Record.Number))},
			menuRow(),
		),
	}
}

func updatedReply(out wizard.Outcome, remote bool) models.Reply {
	text := fmt.Sprintf("✅ Amount of <b>%s</b> changed from %s to %s.\n%s",
		html.EscapeString(out.Record.Name),
		models.FormatQuantity(out.Previous),
		out.Record.QuantityText(),
		syncLine(out.Synced, remote))
	return models.Reply{
		Text:     text,
		Keyboard: keyboard([]models.InlineKeyboardButton{button("📋 View", token(cbItem, out.Record.Number))}, menuRow()),
	}
}

func failedReply(action string, err error) models.Reply {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return models.Reply{
		Text:     fmt.Sprintf("❌ Could not %s: %s", action, html.EscapeString(detail)),
		Keyboard: keyboard(menuRow()),
	}
}

func notFoundReply(number int) models.Reply {
	return models.Reply{
		Text:     fmt.Sprintf("Instrument №%d was not found. It may have been deleted.", number),
		Keyboard: keyboard([]models.InlineKeyboardButton{button("📋 View inventory", token(cbList, 0))}, menuRow()),
	}
}

func cancelledReply() models.Reply {
	reply := menuReply()
	reply.Text = "Cancelled. Nothing was changed.\n\n" + reply.Text
	return reply
}

func deleteConfirmReply(rec models.Instrument) models.Reply {
	return models.Reply{
		Text: fmt.Sprintf("Delete <b>№%d %s</b>? This cannot be undone.", rec.Number, html.EscapeString(rec.Name)),
		Keyboard: keyboard([]models.InlineKeyboardButton{
			button("✅ Yes, delete", token(cbDeleteOK, rec.Number)),
			button("❌ No", token(cbItem, rec.Number)),
		}),
	}
}

func deletedReply(rec models.Instrument, synced, remote bool) models.Reply {
	text := fmt.Sprintf("🗑 <b>%s</b> (№%d) deleted.\n%s", html.EscapeString(rec.Name), rec.Number, syncLine(synced, remote))
	return models.Reply{
		Text:     text,
		Keyboard: keyboard([]models.InlineKeyboardButton{button("📋 View inventory", token(cbList, 0))}, menuRow()),
	}
}

func linkReply(link, file string, count int) models.Reply {
	if link == "" {
		link = "not available yet"
	}
	text := fmt.Sprintf("🔗 Remote copy: %s\n📄 Local file: %s\n🧰 Instruments: %d",
		html.EscapeString(link), html.EscapeString(file), count)
	return models.Reply{Text: text, Keyboard: keyboard(menuRow())}
}

func syncReply(ok, remote bool, count int) models.Reply {
	text := fmt.Sprintf("✅ Synced %d instruments to the remote copy.", count)
	switch {
	case !remote:
		text = "No remote copy is configured. The local file is up to date."
	case !ok:
		text = "❌ Sync failed. Changes stay saved locally and will be retried."
	}
	return models.Reply{Text: text, Keyboard: keyboard(menuRow())}
}
