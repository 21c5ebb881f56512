package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"dawam/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	bot          *tgbotapi.BotAPI
	targetChatID int64
	backend      Backend
)

// UserLinker binds chats to users
type UserLinker interface {
	LinkTelegram(ctx context.Context, email string, chatID int64) (*models.User, error)
	ByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
}

// AttendanceReader answers the attendance commands
type AttendanceReader interface {
	DailySummary(ctx context.Context, userID, day string) (*models.DailySummary, error)
	History(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	Status(ctx context.Context, userID string) (models.WorkerStatus, error)
}

// TaskBoard answers the task commands
type TaskBoard interface {
	ForUser(ctx context.Context, userID string) ([]models.Task, error)
	Toggle(ctx context.Context, taskID, reportText string) (*models.Task, error)
}

// Backend is what the bot commands read from
type Backend struct {
	Users      UserLinker
	Attendance AttendanceReader
	Tasks      TaskBoard
}

// SetBackend wires the services used by the commands
func SetBackend(b Backend) {
	backend = b
}

// Init initializes the Telegram Bot
func Init(token string, authorizedChatIDStr string) error {
	var err error
	bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}

	bot.Debug = false
	log.Printf("Authorized on account %s", bot.Self.UserName)

	if authorizedChatIDStr != "" {
		id, err := strconv.ParseInt(authorizedChatIDStr, 10, 64)
		if err == nil {
			targetChatID = id
		}
	}

	return nil
}

// StartPolling starts the update loop; it stops when ctx is cancelled
func StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				log.Println("Telegram polling stopped")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.CallbackQuery != nil {
					handleCallback(update.CallbackQuery)
					continue
				}
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}

				msg := tgbotapi.NewMessage(update.Message.Chat.ID, "")
				msg.ParseMode = "Markdown"
				msg.Text = Reply(ctx, update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())

				if _, err := bot.Send(msg); err != nil {
					log.Printf("Bot send error: %v", err)
				}
			}
		}
	}()
}

func handleCallback(query *tgbotapi.CallbackQuery) {
	// Simplified callback handler
	callback := tgbotapi.NewCallback(query.ID, "OK")
	bot.Request(callback)
}

// Reply builds the answer to one command
func Reply(ctx context.Context, chatID int64, command, args string) string {
	switch command {
	case "start":
		return "🏢 *Dawam attendance*\n\n" +
			"*Commands:*\n" +
			"/register <email> - link this chat\n" +
			"/myinfo - my account\n" +
			"/today - today's session\n" +
			"/status - my status\n" +
			"/tasks - my tasks\n" +
			"/done <n> [report] - toggle task n\n" +
			"/history - recent records"
	case "getid":
		return fmt.Sprintf("Chat ID: `%d`", chatID)
	case "register":
		return handleRegister(ctx, chatID, args)
	}

	user, err := backend.Users.ByTelegramChat(ctx, chatID)
	if err != nil {
		return "❌ Not registered. Use /register <email>"
	}

	switch command {
	case "myinfo":
		return fmt.Sprintf("👤 *Info*\nName: %s\nEmail: %s\nRole: %s", user.FullName, user.Email, user.Role)
	case "today":
		return handleToday(ctx, user)
	case "status":
		status, err := backend.Attendance.Status(ctx, user.ID)
		if err != nil {
			return fmt.Sprintf("❌ Error: %v", err)
		}
		return fmt.Sprintf("Status: *%s*", status)
	case "tasks":
		return handleTasks(ctx, user)
	case "done":
		return handleDone(ctx, user, args)
	case "history":
		return handleHistory(ctx, user)
	}
	return "Unknown command, use /start"
}

func handleRegister(ctx context.Context, chatID int64, args string) string {
	email := strings.TrimSpace(args)
	if email == "" {
		return "Usage: `/register <email>`"
	}
	user, err := backend.Users.LinkTelegram(ctx, email, chatID)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	return fmt.Sprintf("✅ Registered!\nName: %s", user.FullName)
}

func handleToday(ctx context.Context, user *models.User) string {
	summary, err := backend.Attendance.DailySummary(ctx, user.ID, "")
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if summary.StartedAt == nil {
		return "No check-in today"
	}
	text := fmt.Sprintf("📊 *Today*\nIn: %s", summary.StartedAt.Format("15:04"))
	if summary.EndedAt != nil {
		text += fmt.Sprintf("\nOut: %s", summary.EndedAt.Format("15:04"))
	}
	return text + fmt.Sprintf("\nHours: %s", summary.Elapsed)
}

func handleTasks(ctx context.Context, user *models.User) string {
	tasks, err := backend.Tasks.ForUser(ctx, user.ID)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(tasks) == 0 {
		return "No tasks"
	}
	text := "📝 *Tasks*\n\n"
	for i, t := range tasks {
		mark := "⬜"
		if t.Completed {
			mark = "✅"
		}
		text += fmt.Sprintf("%d. %s %s (%s)\n", i+1, mark, t.Title, t.Priority)
	}
	return text
}

// handleDone toggles the n-th task of the /tasks list; the rest of the arguments is the report
func handleDone(ctx context.Context, user *models.User, args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: `/done <n> [report]`"
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return "Usage: `/done <n> [report]`"
	}
	tasks, err := backend.Tasks.ForUser(ctx, user.ID)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if n > len(tasks) {
		return fmt.Sprintf("No task %d", n)
	}
	task, err := backend.Tasks.Toggle(ctx, tasks[n-1].ID, strings.Join(fields[1:], " "))
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	if task.Completed {
		return fmt.Sprintf("✅ Completed: %s", task.Title)
	}
	return fmt.Sprintf("↩️ Reopened: %s", task.Title)
}

func handleHistory(ctx context.Context, user *models.User) string {
	history, err := backend.Attendance.History(ctx, user.ID)
	if err != nil || len(history) == 0 {
		return "No history found"
	}
	if len(history) > 10 {
		history = history[:10]
	}
	text := "📅 *History*\n\n"
	for _, h := range history {
		text += fmt.Sprintf("%s %s: %s\n", h.Date, h.Timestamp.Format("15:04"), h.Kind)
	}
	return text
}

// SendNotification sends message to admin
func SendNotification(message string) {
	if bot == nil || targetChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(targetChatID, message)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Failed to send: %v", err)
	}
}

// SendPersonalNotification sends to specific user
func SendPersonalNotification(chatID int64, message string) {
	if bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = "Markdown"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Failed to send to %d: %v", chatID, err)
	}
}
