// Package importsession drives the per-user workflow that lets an operator
// bulk-forward historical content into a target collection.
package importsession

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chanfeed-bot/internal/database"
	"chanfeed-bot/internal/database/models"
	"chanfeed-bot/internal/locales"
	"chanfeed-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Ingestor is the ingestion entry point forwarded messages are routed through.
type Ingestor interface {
	IngestMessage(ctx context.Context, collectionID int64, source string, msg *telego.Message) error
}

// Manager is the import session state machine. Each user is in one of three
// states: no session, an active session, or a completed one. Sessions are
// append-only history; starting again creates a new row rather than reviving
// a completed one. The manager, not the store, enforces that at most one
// session per user is active.
type Manager struct {
	bot          telegoapi.BotAPI
	sessions     database.ImportSessionRepository
	accounts     database.AccountRepository
	ingestor     Ingestor
	collectionID int64 // the bot's configured target collection, 0 when unbound
}

// NewManager creates an import session manager.
func NewManager(
	bot telegoapi.BotAPI,
	sessions database.ImportSessionRepository,
	accounts database.AccountRepository,
	ingestor Ingestor,
	collectionID int64,
) *Manager {
	if bot == nil {
		log.Fatal("Import session manager: BotAPI instance is nil")
	}
	if sessions == nil {
		log.Fatal("Import session manager: session repository is nil")
	}
	if accounts == nil {
		log.Fatal("Import session manager: account repository is nil")
	}
	if ingestor == nil {
		log.Fatal("Import session manager: ingestor is nil")
	}
	return &Manager{
		bot:          bot,
		sessions:     sessions,
		accounts:     accounts,
		ingestor:     ingestor,
		collectionID: collectionID,
	}
}

// HandleMessage processes one private-chat message: forwarded messages feed an
// active session, text is interpreted as a command (slash form or localized
// button label), and anything else is ignored.
func (m *Manager) HandleMessage(ctx context.Context, msg *telego.Message) error {
	if msg == nil || msg.From == nil {
		return nil
	}

	if msg.ForwardOrigin != nil {
		return m.handleForwarded(ctx, msg)
	}
	if msg.Text == "" {
		return nil
	}

	switch locales.CanonicalCommand(msg.Text) {
	case "start":
		return m.handleStart(ctx, msg)
	case "status":
		return m.handleStatus(ctx, msg)
	case "stop":
		return m.handleStop(ctx, msg)
	case "help":
		return m.replyHelp(ctx, msg)
	default:
		// Free-form text during an active session is ignored so stray chatter
		// does not interrupt an import. Without a session it gets usage text.
		if _, err := m.activeSession(ctx, msg.From.ID); err == nil {
			return nil
		}
		return m.replyHelp(ctx, msg)
	}
}

// handleStart deactivates any prior active session for the user and opens a
// fresh one bound to the bot's collection.
func (m *Manager) handleStart(ctx context.Context, msg *telego.Message) error {
	userID := msg.From.ID
	localizer := m.localizer(msg.From)

	account, err := m.accounts.FindByTelegramID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgImportStartNoAccount", nil, nil), nil)
		}
		return fmt.Errorf("failed to resolve account for user %d: %w", userID, err)
	}
	if m.collectionID == 0 {
		return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgImportStartNoCollection", nil, nil), nil)
	}

	if prior, err := m.activeSession(ctx, userID); err == nil {
		if err := m.sessions.Close(ctx, prior.ID); err != nil {
			return fmt.Errorf("failed to close prior session for user %d: %w", userID, err)
		}
		log.Printf("[ImportSession] Closed prior active session %s for user %d", prior.ID.Hex(), userID)
	} else if !errors.Is(err, database.ErrSessionNotFound) {
		return err
	}

	session := &models.ImportSession{
		UserID:       userID,
		AccountID:    account.AccountID,
		CollectionID: m.collectionID,
		Active:       true,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to create session for user %d: %w", userID, err)
	}
	log.Printf("[ImportSession] Started session %s for user %d into collection %d", session.ID.Hex(), userID, m.collectionID)

	text := locales.GetMessage(localizer, "MsgImportStarted", map[string]interface{}{"Collection": m.collectionID}, nil)
	return m.reply(ctx, msg.Chat.ID, text, m.keyboard(localizer))
}

// handleStatus reports the active session's collection and counter.
func (m *Manager) handleStatus(ctx context.Context, msg *telego.Message) error {
	localizer := m.localizer(msg.From)

	session, err := m.activeSession(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgNoActiveImport", nil, nil), nil)
		}
		return err
	}

	text := locales.GetMessage(localizer, "MsgImportStatus", map[string]interface{}{
		"Collection": session.CollectionID,
		"Count":      session.MessageCount,
	}, nil)
	return m.reply(ctx, msg.Chat.ID, text, m.keyboard(localizer))
}

// handleStop completes the active session and reports the final counter.
func (m *Manager) handleStop(ctx context.Context, msg *telego.Message) error {
	localizer := m.localizer(msg.From)

	session, err := m.activeSession(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgNoActiveImport", nil, nil), nil)
		}
		return err
	}

	if err := m.sessions.Close(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to close session %s: %w", session.ID.Hex(), err)
	}
	log.Printf("[ImportSession] Completed session %s for user %d with %d message(s)", session.ID.Hex(), session.UserID, session.MessageCount)

	text := locales.GetMessage(localizer, "MsgImportStopped", map[string]interface{}{"Count": session.MessageCount}, nil)
	return m.reply(ctx, msg.Chat.ID, text, nil)
}

// handleForwarded ingests a forwarded message into the active session's
// collection and bumps the counter. Without an active session forwarded
// content is ignored.
func (m *Manager) handleForwarded(ctx context.Context, msg *telego.Message) error {
	session, err := m.activeSession(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	if err := m.ingestor.IngestMessage(ctx, session.CollectionID, models.PostSourceImport, msg); err != nil {
		return fmt.Errorf("failed to ingest forwarded message %d: %w", msg.MessageID, err)
	}
	if err := m.sessions.IncrementCounter(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to count forwarded message %d: %w", msg.MessageID, err)
	}
	return nil
}

func (m *Manager) replyHelp(ctx context.Context, msg *telego.Message) error {
	localizer := m.localizer(msg.From)
	return m.reply(ctx, msg.Chat.ID, locales.GetMessage(localizer, "MsgHelp", nil, nil), m.keyboard(localizer))
}

func (m *Manager) activeSession(ctx context.Context, userID int64) (*models.ImportSession, error) {
	return m.sessions.FindActiveByUserID(ctx, userID)
}

// reply sends a message, optionally with a reply keyboard. Send failures are
// logged only; a lost reply must not fail the enclosing state transition.
func (m *Manager) reply(ctx context.Context, chatID int64, text string, keyboard *telego.ReplyKeyboardMarkup) error {
	params := tu.Message(tu.ID(chatID), text)
	if keyboard != nil {
		params = params.WithReplyMarkup(keyboard)
	}
	if _, err := m.bot.SendMessage(ctx, params); err != nil {
		log.Printf("[ImportSession] Failed to send reply to chat %d: %v", chatID, err)
	}
	return nil
}

// keyboard builds the localized reply keyboard with the session commands.
func (m *Manager) keyboard(localizer *i18n.Localizer) *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(
			tu.KeyboardButton(locales.GetMessage(localizer, "BtnStatus", nil, nil)),
			tu.KeyboardButton(locales.GetMessage(localizer, "BtnStopImport", nil, nil)),
		),
		tu.KeyboardRow(
			tu.KeyboardButton(locales.GetMessage(localizer, "BtnHelp", nil, nil)),
		),
	).WithResizeKeyboard()
}

// localizer picks the best localizer for the user's language code.
func (m *Manager) localizer(user *telego.User) *i18n.Localizer {
	lang := locales.GetDefaultLanguageTag().String()
	if user != nil && user.LanguageCode != "" {
		lang = user.LanguageCode
	}
	return locales.NewLocalizer(lang)
}
