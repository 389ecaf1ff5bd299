package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gtec-tasks/internal/model"
	"gtec-tasks/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageRequester
	stageDescription
	stageDeadline
	stageDepartment
	stageHours
	stageDirectRelease
	stageAssignee
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageRequester})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> who is requesting it?", requesterKeyboard(b.tasks.Requesters()))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageRequester:
		requesters := b.tasks.Requesters()
		if text == "" || (len(requesters) > 0 && !containsFold(requesters, text)) {
			return b.sendWithReplyMarkup(chatID, "Pick a requester from the list.", requesterKeyboard(requesters))
		}
		state.input.Requester = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(chatID, "✏️ <b>Step 2:</b> describe the task.", cancelKeyboard())
	case stageDescription:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The description cannot be empty.", cancelKeyboard())
		}
		state.input.Description = text
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(chatID, "⏰ <b>Step 3:</b> proposed deadline, e.g. <code>2025-11-30</code>.", cancelKeyboard())
	case stageDeadline:
		deadline, err := model.ParseDate("proposed_deadline", text)
		if err != nil || deadline.IsZero() {
			return b.sendWithReplyMarkup(chatID, "I cannot read that date. Use <code>2025-11-30</code>.", cancelKeyboard())
		}
		state.input.ProposedDeadline = string(deadline)
		state.stage = stageDepartment
		return b.sendWithReplyMarkup(chatID, "🏢 Department (or Skip).", skipKeyboard())
	case stageDepartment:
		if !isSkipInput(text) {
			state.input.Department = text
		}
		state.stage = stageHours
		return b.sendWithReplyMarkup(chatID, "⌛ Estimated hours (or Skip).", skipKeyboard())
	case stageHours:
		if !isSkipInput(text) {
			hours, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
			if err != nil || hours < 0 {
				return b.sendWithReplyMarkup(chatID, "Hours must be a non-negative number, e.g. <code>2.5</code>.", skipKeyboard())
			}
			state.input.HoursEstimated = hours
		}
		state.stage = stageDirectRelease
		return b.sendWithReplyMarkup(chatID, "🚀 Direct release? Yes skips the final check and rework flow.", yesNoKeyboard())
	case stageDirectRelease:
		direct, err := model.ParseYesNo("direct_release", text)
		if err != nil || direct == "" {
			return b.sendWithReplyMarkup(chatID, "Answer Yes or No.", yesNoKeyboard())
		}
		state.input.DirectRelease = string(direct)
		state.stage = stageAssignee
		return b.sendWithReplyMarkup(chatID, "👤 GTEC user handling it (or Skip).", skipKeyboard())
	case stageAssignee:
		if !isSkipInput(text) {
			state.input.GTECUser = text
		}
		b.clearConversation(msg.From.ID)
		return b.finishTaskCreation(ctx, chatID, state.input)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "Input reset. Start again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	id, err := b.tasks.CreateTask(ctx, input)
	if err != nil {
		return b.sendError(chatID, fmt.Errorf("task not saved: %w", err))
	}
	task, err := b.tasks.GetTask(ctx, id)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, "✅ <b>Task saved</b>\n"+taskDetails(*task))
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}
