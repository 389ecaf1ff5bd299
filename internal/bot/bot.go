package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gtec-tasks/internal/export"
	"gtec-tasks/internal/model"
	"gtec-tasks/internal/service"
)

const (
	cbStatusPrefix = "status:"
	cbTaskPrefix   = "task:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnYes           = "Yes"
	btnNo            = "No"
	btnCancelDialog  = "⏪ Cancel input"
	iconDefault      = "🟢"
	iconDone         = "✅"
	iconHold         = "⏸"
	iconOverdue      = "⚠️"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelKPI     = "📊 KPI"
	menuLabelHelp    = "ℹ️ Help"
	maxListed        = 30
)

// sender is the part of the Telegram API the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram front-end of the task tracker.
type Bot struct {
	api           *tgbotapi.BotAPI
	out           sender
	tasks         *service.TaskService
	reports       *service.ReportService
	conversations map[int64]*conversationState
	subscribers   map[int64]struct{}
	now           func() time.Time
	mu            sync.Mutex
}

func New(token string, tasks *service.TaskService, reports *service.ReportService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, tasks, reports)
	b.api = api
	return b, nil
}

func newBot(out sender, tasks *service.TaskService, reports *service.ReportService) *Bot {
	return &Bot{
		out:           out,
		tasks:         tasks,
		reports:       reports,
		conversations: make(map[int64]*conversationState),
		subscribers:   make(map[int64]struct{}),
		now:           time.Now,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task input cancelled.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "tasks":
		return b.handleListTasks(ctx, msg.Chat.ID)
	case "task":
		return b.handleShowTask(ctx, msg.Chat.ID, msg.CommandArguments())
	case "status":
		return b.handleStatus(ctx, msg)
	case "approve":
		return b.handleApprove(ctx, msg)
	case "kpi":
		return b.handleKPI(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "export":
		return b.handleExport(ctx, msg)
	case "subscribe":
		b.setSubscribed(msg.Chat.ID, true)
		return b.sendText(msg.Chat.ID, "🔔 This chat will receive the scheduled KPI report.")
	case "unsubscribe":
		b.setSubscribed(msg.Chat.ID, false)
		return b.sendText(msg.Chat.ID, "🔕 Scheduled reports switched off.")
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I track GTEC requests from intake to final approval.</b>\n\n%s", escape(name), commandList)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+commandList)
}

const commandList = "• /newtask — add a task step by step\n" +
	"• /tasks — list tasks\n" +
	"• /task &lt;id&gt; — task details and status buttons\n" +
	"• /status &lt;id&gt; &lt;status&gt; — e.g. /status 3 In progress\n" +
	"• /approve &lt;id&gt; &lt;OK|Pending|Rework&gt; [YYYY-MM-DD]\n" +
	"• /kpi — dashboard numbers\n" +
	"• /report — overdue and unapproved tasks\n" +
	"• /export — Excel file of all tasks\n" +
	"• /subscribe, /unsubscribe — scheduled report\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleListTasks(ctx context.Context, chatID int64) error {
	tasks, err := b.tasks.Snapshot(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No tasks yet. Add one with /newtask.")
	}

	open := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != model.StatusCompleted || t.AwaitingApproval() {
			open = append(open, t)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		di, okI := open[i].ProposedDeadline.Time()
		dj, okJ := open[j].ProposedDeadline.Time()
		if okI != okJ {
			return okI
		}
		return di.Before(dj)
	})

	now := b.now()
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>Tasks</b> (%d total, %d open)\n\n", len(tasks), len(open)))
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, t := range open {
		if i == maxListed {
			builder.WriteString(fmt.Sprintf("… and %d more\n", len(open)-maxListed))
			break
		}
		builder.WriteString(taskLine(t, now))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("#%s · %s", t.ID, shortTitle(t.Description, 24)), cbTaskPrefix+t.ID),
		))
	}
	if len(open) == 0 {
		builder.WriteString("Everything is completed and approved. 🎉\n")
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) handleShowTask(ctx context.Context, chatID int64, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return b.sendText(chatID, "Give the task id: /task 12")
	}
	task, err := b.tasks.GetTask(ctx, id)
	if err != nil {
		return b.sendError(chatID, err)
	}

	msg := tgbotapi.NewMessage(chatID, taskDetails(*task))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = statusKeyboard(task.ID)
	_, err = b.out.Send(msg)
	return err
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	id, status, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	if id == "" || strings.TrimSpace(status) == "" {
		return b.sendText(msg.Chat.ID, "Usage: /status &lt;id&gt; &lt;status&gt;, e.g. /status 3 Completed")
	}
	return b.moveStatus(ctx, msg.Chat.ID, id, status)
}

// moveStatus changes only the status, keeping the task's check and rework
// answers.
func (b *Bot) moveStatus(ctx context.Context, chatID int64, id, status string) error {
	cur, err := b.tasks.GetTask(ctx, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	task, err := b.tasks.UpdateStatusFields(ctx, cur.ID, service.UpdateKeepingSubstate(*cur, status))
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("✅ Task <b>#%s</b> is now <b>%s</b>.", escape(task.ID), escape(string(task.Status))))
}

func (b *Bot) handleApprove(ctx context.Context, msg *tgbotapi.Message) error {
	id, approval, completion, ok := parseApproveArgs(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Usage: /approve &lt;id&gt; &lt;OK|Pending|Rework&gt; [YYYY-MM-DD]")
	}
	task, err := b.tasks.SubmitFinalApproval(ctx, id, approval, completion)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	text := fmt.Sprintf("✅ Task <b>#%s</b> saved.", escape(task.ID))
	if task.FinalApproval != "" {
		text = fmt.Sprintf("✅ Task <b>#%s</b> approval: <b>%s</b>.", escape(task.ID), escape(string(task.FinalApproval)))
	}
	if !task.CompletionDate.IsZero() {
		text += fmt.Sprintf("\nCompleted on %s.", escape(string(task.CompletionDate)))
	}
	return b.sendText(msg.Chat.ID, text)
}

// parseApproveArgs splits "<id> <approval words...> [date]". A trailing
// argument that parses as a date is the completion date.
func parseApproveArgs(args string) (id, approval, completion string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", "", "", false
	}
	id, rest := fields[0], fields[1:]
	if last := rest[len(rest)-1]; looksLikeDate(last) {
		completion = last
		rest = rest[:len(rest)-1]
	}
	approval = strings.Join(rest, " ")
	if approval == "-" {
		approval = ""
	}
	return id, approval, completion, approval != "" || completion != ""
}

func looksLikeDate(s string) bool {
	d, err := model.ParseDate("completion_date", s)
	return err == nil && !d.IsZero()
}

func (b *Bot) handleKPI(ctx context.Context, msg *tgbotapi.Message) error {
	kpis, err := b.tasks.KPIs(ctx)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, "📊 <b>KPI</b>\n"+service.FormatKPIs(kpis))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.reports.Digest(ctx, b.now())
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	tasks, err := b.tasks.Snapshot(ctx)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, tasks); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  export.FileName(b.now()),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("%d tasks", len(tasks))
	_, err = b.out.Send(doc)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(cb.Data, cbTaskPrefix):
		return b.handleShowTask(ctx, chatID, strings.TrimPrefix(cb.Data, cbTaskPrefix))
	case strings.HasPrefix(cb.Data, cbStatusPrefix):
		id, status, err := parseStatusCallback(cb.Data)
		if err != nil {
			return err
		}
		log.Printf("[info] callback status user=%d task=%s status=%q", cb.From.ID, id, status)
		return b.moveStatus(ctx, chatID, id, string(status))
	default:
		return nil
	}
}

func statusCallback(id string, i int) string {
	return fmt.Sprintf("%s%d:%s", cbStatusPrefix, i, id)
}

func parseStatusCallback(data string) (string, model.Status, error) {
	idx, id, ok := strings.Cut(strings.TrimPrefix(data, cbStatusPrefix), ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed callback %q", data)
	}
	i, err := strconv.Atoi(idx)
	statuses := model.ValidStatuses()
	if err != nil || i < 0 || i >= len(statuses) {
		return "", "", fmt.Errorf("malformed callback %q", data)
	}
	return id, statuses[i], nil
}

// SendDigests sends the KPI report to every subscribed chat.
func (b *Bot) SendDigests(ctx context.Context) error {
	chats := b.Subscribers()
	if len(chats) == 0 {
		return nil
	}
	text, err := b.reports.Digest(ctx, b.now())
	if err != nil {
		return err
	}
	for _, chatID := range chats {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(chatID, text); err != nil {
			log.Printf("send report to %d: %v", chatID, err)
		}
	}
	return nil
}

// Subscribers returns the chats receiving scheduled reports.
func (b *Bot) Subscribers() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	chats := make([]int64, 0, len(b.subscribers))
	for id := range b.subscribers {
		chats = append(chats, id)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats
}

func (b *Bot) setSubscribed(chatID int64, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.subscribers[chatID] = struct{}{}
	} else {
		delete(b.subscribers, chatID)
	}
}

func (b *Bot) sendError(chatID int64, err error) error {
	if !isUserError(err) {
		log.Printf("bot request: %v", err)
	}
	return b.sendText(chatID, "❌ "+escape(err.Error()))
}

func isUserError(err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrDuplicateID) ||
		errors.Is(err, model.ErrInvalidEnumValue) ||
		errors.Is(err, model.ErrMissingRequiredField) ||
		errors.Is(err, model.ErrIllegalTransition) ||
		errors.Is(err, model.ErrUnparseableDate)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelKPI):
		return true, b.handleKPI(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func taskLine(t model.Task, now time.Time) string {
	icon := iconDefault
	switch {
	case t.IsOverdue(now):
		icon = iconOverdue
	case t.Status == model.StatusCompleted:
		icon = iconDone
	case t.Status == model.StatusOnHold:
		icon = iconHold
	}
	line := fmt.Sprintf("%s <b>#%s</b> %s · <i>%s</i>", icon, escape(t.ID), escape(shortTitle(t.Description, 40)), escape(string(t.Status)))
	if !t.ProposedDeadline.IsZero() {
		line += " · due " + escape(string(t.ProposedDeadline))
	}
	if t.AwaitingApproval() {
		line += " · awaiting approval"
	}
	return line + "\n"
}

func taskDetails(t model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📄 <b>Task #%s</b>\n", escape(t.ID)))
	row := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			sb.WriteString(fmt.Sprintf("• <b>%s:</b> %s\n", label, escape(value)))
		}
	}
	row("Description", t.Description)
	row("Requester", t.Requester)
	row("Department", t.Department)
	row("Requested", string(t.RequestDate))
	row("Proposed deadline", string(t.ProposedDeadline))
	if t.HoursEstimated > 0 {
		row("Hours estimated", strconv.FormatFloat(t.HoursEstimated, 'f', -1, 64))
	}
	row("Direct release", string(t.DirectRelease))
	row("GTEC user", t.GTECUser)
	row("GTEC deadline", string(t.GTECDeadline))
	row("Status", string(t.Status))
	row("Completion date", string(t.CompletionDate))
	if t.DirectRelease == model.No {
		row("Final check", string(model.FinalCheckOf(t)))
	}
	if t.ReworkNeeded == model.Yes {
		row("Rework", fmt.Sprintf("%s, %sh, %s", t.ReworkType, strconv.FormatFloat(t.ReworkHours, 'f', -1, 64), t.ReworkStatus))
	}
	row("Final approval", string(t.FinalApproval))
	return strings.TrimSpace(sb.String())
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
