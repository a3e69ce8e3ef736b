// Package bot turns Telegram updates into inventory operations and renders
// the answers: menus, instrument cards, paged lists and wizard prompts.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/metrics"
	"github.com/mamadbah2/toolstock/internal/service/catalog"
	"github.com/mamadbah2/toolstock/internal/service/durable"
	"github.com/mamadbah2/toolstock/internal/service/session"
	"github.com/mamadbah2/toolstock/internal/service/wizard"
	"github.com/mamadbah2/toolstock/pkg/clients/telegram"
)

// DefaultTimeout bounds the handling of a single update.
const DefaultTimeout = time.Minute

// MessagingService describes the operations the HTTP layer and the poller
// can perform.
type MessagingService interface {
	HandleUpdate(ctx context.Context, update models.Update) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Messenger is the outbound half of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *models.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SendPhotoURL(ctx context.Context, chatID int64, url, caption string, keyboard *models.InlineKeyboardMarkup) error
	SendPhotoFile(ctx context.Context, chatID int64, path, caption string, keyboard *models.InlineKeyboardMarkup) error
}

// Inventory is what the bot needs from the durable store besides the wizard.
type Inventory interface {
	Table() inventory.Reader
	Delete(ctx context.Context, number int) (durable.Result, error)
	ForceSync(ctx context.Context) bool
	Link() string
	Path() string
	RemoteEnabled() bool
}

// ImageFinder locates the stored photo of an instrument and drops it when the
// instrument is deleted.
type ImageFinder interface {
	Find(number int) (string, bool)
	Remove(number int) error
}

// Options wires a Service. Images and Metrics may be nil.
type Options struct {
	Messenger Messenger
	Engine    *wizard.Engine
	Store     Inventory
	Catalog   *catalog.Catalog
	Browse    *session.BrowseStore
	Images    ImageFinder
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Timeout   time.Duration
}

// Service dispatches updates. Updates from one user are handled one at a
// time in arrival order; different users are handled concurrently.
type Service struct {
	msg     Messenger
	engine  *wizard.Engine
	store   Inventory
	catalog *catalog.Catalog
	browse  *session.BrowseStore
	images  ImageFinder
	metrics *metrics.Metrics
	logger  *zap.Logger
	timeout time.Duration
	locks   *userLocks
}

var _ MessagingService = (*Service)(nil)

// NewService wires a new service instance.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		msg:     opts.Messenger,
		engine:  opts.Engine,
		store:   opts.Store,
		catalog: opts.Catalog,
		browse:  opts.Browse,
		images:  opts.Images,
		metrics: opts.Metrics,
		logger:  logger,
		timeout: timeout,
		locks:   newUserLocks(),
	}
}

// target is where an answer goes. A non-zero messageID allows editing the
// message a button was pressed on.
type target struct {
	chatID    int64
	messageID int64
}

// HandleUpdate processes one inbound update.
func (s *Service) HandleUpdate(ctx context.Context, update models.Update) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		s.metrics.Update("callback")
		return s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		if len(update.Message.Photo) > 0 {
			s.metrics.Update("photo")
		} else {
			s.metrics.Update("message")
		}
		return s.handleMessage(ctx, update.Message)
	default:
		s.metrics.Update("ignored")
		s.logger.Debug("ignoring update", zap.Int64("update_id", update.UpdateID))
		return nil
	}
}

// SendOutbound lets operators push a plain notification through the HTTP API.
func (s *Service) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.send(ctxWithTimeout, req.ChatID, models.Reply{Text: html.EscapeString(req.Message)})
}

func (s *Service) handleMessage(ctx context.Context, msg *models.Message) error {
	userID := msg.From.ID
	t := target{chatID: msg.Chat.ID}

	unlock := s.locks.lock(userID)
	defer unlock()

	if photo, ok := msg.LargestPhoto(); ok {
		return s.handlePhoto(ctx, userID, t, photo.FileID)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return s.send(ctx, t.chatID, helpReply())
	}

	cmd := models.ParseCommand(text)
	s.logger.Debug("inbound message",
		zap.Int64("user_id", userID),
		zap.String("command", string(cmd.Type)))

	switch cmd.Type {
	case models.CommandStart, models.CommandHelp:
		s.dropWorkflow(ctx, userID)
		s.browse.Clear(userID)
		return s.send(ctx, t.chatID, menuReply())
	case models.CommandAdd:
		return s.render(ctx, t, s.startAdd(userID))
	case models.CommandList:
		return s.showList(ctx, t, userID, 0)
	case models.CommandSearch:
		if len(cmd.Args) > 0 {
			return s.runSearch(ctx, t, userID, strings.Join(cmd.Args, " "))
		}
		return s.askSearchTerm(ctx, t, userID)
	case models.CommandSync:
		return s.forceSync(ctx, t)
	case models.CommandUnknown:
		return s.send(ctx, t.chatID, helpReply())
	}

	action := wizard.Classify(text)
	if _, active := s.engine.Status(userID); active {
		return s.render(ctx, t, s.engine.Handle(ctx, userID, action))
	}

	if s.browse.Get(userID).AwaitingTerm {
		if action.Kind == wizard.ActionCancel {
			s.browse.Clear(userID)
			return s.send(ctx, t.chatID, cancelledReply())
		}
		return s.runSearch(ctx, t, userID, text)
	}

	return s.send(ctx, t.chatID, helpReply())
}

func (s *Service) handlePhoto(ctx context.Context, userID int64, t target, fileID string) error {
	if _, active := s.engine.Status(userID); !active {
		reply := menuReply()
		reply.Text = "Photos are accepted while adding an instrument, at the image step."
		return s.send(ctx, t.chatID, reply)
	}
	return s.render(ctx, t, s.engine.Handle(ctx, userID, wizard.Photo(fileID)))
}

// dropWorkflow cancels a workflow in progress without telling the user.
func (s *Service) dropWorkflow(ctx context.Context, userID int64) {
	if _, active := s.engine.Status(userID); active {
		s.engine.Handle(ctx, userID, wizard.Cancel())
	}
}

func (s *Service) handleCallback(ctx context.Context, q *models.CallbackQuery) error {
	if err := s.msg.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		s.logger.Warn("failed to answer callback", zap.String("callback_id", q.ID), zap.Error(err))
	}
	if q.Message == nil {
		return nil
	}

	userID := q.From.ID
	t := target{chatID: q.Message.Chat.ID, messageID: q.Message.MessageID}

	unlock := s.locks.lock(userID)
	defer unlock()

	cb, err := ParseCallback(q.Data)
	if err != nil {
		s.logger.Warn("unrecognised callback", zap.Int64("user_id", userID), zap.String("data", q.Data))
		return s.send(ctx, t.chatID, helpReply())
	}

	s.logger.Debug("inbound callback",
		zap.Int64("user_id", userID),
		zap.String("kind", cb.Kind),
		zap.Int("arg", cb.Arg))

	switch cb.Kind {
	case cbNoop:
		return nil
	case cbMenu:
		return s.edit(ctx, t, menuReply())
	case cbList:
		return s.showList(ctx, t, userID, cb.Arg)
	case cbSearch:
		return s.askSearchTerm(ctx, target{chatID: t.chatID}, userID)
	case cbResults:
		return s.showResults(ctx, t, userID, cb.Arg)
	case cbBack:
		return s.back(ctx, userID, t)
	case cbItem:
		return s.showCard(ctx, t, cb.Arg)
	case cbEdit:
		return s.render(ctx, t, s.startEdit(userID, cb.Arg))
	case cbDelete:
		return s.confirmDelete(ctx, t, cb.Arg)
	case cbDeleteOK:
		return s.deleteInstrument(ctx, t, cb.Arg)
	case cbAdd:
		return s.render(ctx, t, s.startAdd(userID))
	case cbSkip:
		return s.render(ctx, t, s.engine.Handle(ctx, userID, wizard.Skip().At(cb.Step)))
	case cbStepBack:
		return s.render(ctx, t, s.engine.Handle(ctx, userID, wizard.Back().At(cb.Step)))
	case cbCancel:
		return s.render(ctx, t, s.engine.Handle(ctx, userID, wizard.Cancel()))
	case cbSync:
		return s.forceSync(ctx, t)
	case cbLink:
		return s.send(ctx, t.chatID, linkReply(s.store.Link(), filepath.Base(s.store.Path()), s.catalog.Count()))
	}
	return nil
}

// render answers a workflow outcome with a new message.
func (s *Service) render(ctx context.Context, t target, out wizard.Outcome) error {
	var reply models.Reply

	switch out.Kind {
	case wizard.OutcomePrompt:
		reply = promptReply(out)
	case wizard.OutcomeInvalid:
		reply = invalidReply(out)
	case wizard.OutcomeSaved:
		reply = savedReply(out, s.hasPhoto(out.Record.Number), s.store.RemoteEnabled())
	case wizard.OutcomeUpdated:
		reply = updatedReply(out, s.store.RemoteEnabled())
	case wizard.OutcomeCancelled:
		reply = cancelledReply()
	case wizard.OutcomeFailed:
		action := "save the instrument"
		if out.Workflow == session.KindEditAmount {
			action = "update the amount"
		}
		reply = failedReply(action, out.Err)
	case wizard.OutcomeNotFound:
		reply = notFoundReply(out.Target)
	case wizard.OutcomeNoSession:
		reply = menuReply()
		reply.Text = "There is no workflow in progress.\n\n" + reply.Text
	}

	return s.send(ctx, t.chatID, reply)
}

func (s *Service) hasPhoto(number int) bool {
	if s.images == nil {
		return false
	}
	_, ok := s.images.Find(number)
	return ok
}

func (s *Service) askSearchTerm(ctx context.Context, t target, userID int64) error {
	s.browse.AwaitTerm(userID)
	return s.send(ctx, t.chatID, models.Reply{
		Text:     "🔍 Send part of the instrument name:",
		Keyboard: keyboard(menuRow()),
	})
}

func (s *Service) runSearch(ctx context.Context, t target, userID int64, term string) error {
	term = strings.TrimSpace(term)
	ctxBrowse := s.browse.StartSearch(userID, term, s.catalog.Search(term))
	page := s.catalog.Resolve(ctxBrowse.Matches, 0)

	s.logger.Info("search",
		zap.Int64("user_id", userID),
		zap.String("term", term),
		zap.Int("matches", page.Total))
	return s.send(ctx, t.chatID, searchReply(term, page))
}

func (s *Service) showResults(ctx context.Context, t target, userID int64, page int) error {
	ctxBrowse := s.browse.Get(userID)
	if ctxBrowse.Term == "" {
		return s.showList(ctx, t, userID, 0)
	}

	p := s.catalog.Resolve(ctxBrowse.Matches, page)
	ctxBrowse.Page = p.Page
	ctxBrowse.AwaitingTerm = false
	s.browse.Set(userID, ctxBrowse)
	return s.edit(ctx, t, searchReply(ctxBrowse.Term, p))
}

func (s *Service) showList(ctx context.Context, t target, userID int64, page int) error {
	p := s.catalog.List(page)
	s.browse.Set(userID, session.Browse{Page: p.Page})
	return s.edit(ctx, t, listReply(p))
}

// back returns from an instrument card to the list or search page it was
// opened from.
func (s *Service) back(ctx context.Context, userID int64, t target) error {
	ctxBrowse := s.browse.Get(userID)
	if ctxBrowse.Term != "" {
		return s.showResults(ctx, t, userID, ctxBrowse.Page)
	}
	return s.showList(ctx, t, userID, ctxBrowse.Page)
}

func (s *Service) showCard(ctx context.Context, t target, number int) error {
	rec, err := s.store.Table().Get(number)
	if err != nil || !rec.Visible() {
		return s.send(ctx, t.chatID, notFoundReply(number))
	}

	path, hasPhoto := "", false
	if s.images != nil {
		path, hasPhoto = s.images.Find(number)
	}
	caption := renderCard(rec, hasPhoto)
	kb := cardKeyboard(number)

	if rec.ImageURL != "" {
		err := s.msg.SendPhotoURL(ctx, t.chatID, rec.ImageURL, caption, kb)
		if err == nil {
			return nil
		}
		s.logger.Warn("failed to send photo by link", zap.Int("number", number), zap.Error(err))
	} else if hasPhoto {
		err := s.msg.SendPhotoFile(ctx, t.chatID, path, caption, kb)
		if err == nil {
			return nil
		}
		s.logger.Warn("failed to send stored photo", zap.Int("number", number), zap.String("path", path), zap.Error(err))
	}

	return s.send(ctx, t.chatID, models.Reply{Text: caption, Keyboard: kb})
}

func (s *Service) confirmDelete(ctx context.Context, t target, number int) error {
	rec, err := s.store.Table().Get(number)
	if err != nil {
		return s.send(ctx, t.chatID, notFoundReply(number))
	}
	return s.send(ctx, t.chatID, deleteConfirmReply(rec))
}

// startAdd and startEdit open a workflow. A pending search prompt is dropped
// so later text goes to the workflow or gets the help reply.
func (s *Service) startAdd(userID int64) wizard.Outcome {
	s.browse.StopAwaiting(userID)
	return s.engine.Start(userID)
}

func (s *Service) startEdit(userID int64, number int) wizard.Outcome {
	s.browse.StopAwaiting(userID)
	return s.engine.BeginEdit(userID, number)
}

func (s *Service) deleteInstrument(ctx context.Context, t target, number int) error {
	res, err := s.store.Delete(ctx, number)
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return s.edit(ctx, t, notFoundReply(number))
	case err != nil:
		s.logger.Error("failed to delete instrument", zap.Int("number", number), zap.Error(err))
		return s.edit(ctx, t, failedReply("delete the instrument", err))
	}

	s.logger.Info("instrument deleted", zap.Int("number", number), zap.Bool("synced", res.Synced))
	if s.images != nil {
		if err := s.images.Remove(number); err != nil {
			s.logger.Warn("failed to remove photo of deleted instrument", zap.Int("number", number), zap.Error(err))
		}
	}
	return s.edit(ctx, t, deletedReply(res.Record, res.Synced, s.store.RemoteEnabled()))
}

func (s *Service) forceSync(ctx context.Context, t target) error {
	if !s.store.RemoteEnabled() {
		return s.send(ctx, t.chatID, syncReply(false, false, s.catalog.Count()))
	}
	ok := s.store.ForceSync(ctx)
	return s.send(ctx, t.chatID, syncReply(ok, true, s.catalog.Count()))
}

func (s *Service) send(ctx context.Context, chatID int64, reply models.Reply) error {
	if _, err := s.msg.SendMessage(ctx, chatID, reply.Text, reply.Keyboard); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

// edit replaces the message a button was pressed on, falling back to a new
// message when the original cannot be edited (photos, old messages).
func (s *Service) edit(ctx context.Context, t target, reply models.Reply) error {
	if t.messageID == 0 {
		return s.send(ctx, t.chatID, reply)
	}
	err := s.msg.EditMessageText(ctx, t.chatID, t.messageID, reply.Text, reply.Keyboard)
	if err == nil || telegram.NotModified(err) {
		return nil
	}
	s.logger.Debug("edit failed, sending a new message", zap.Int64("chat_id", t.chatID), zap.Error(err))
	return s.send(ctx, t.chatID, reply)
}
