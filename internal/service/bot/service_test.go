package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/repository/images"
	"github.com/mamadbah2/toolstock/internal/service/catalog"
	"github.com/mamadbah2/toolstock/internal/service/durable"
	"github.com/mamadbah2/toolstock/internal/service/session"
	"github.com/mamadbah2/toolstock/internal/service/wizard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

const (
	userID int64 = 501
	chatID int64 = 9001
)

type sentMessage struct {
	chatID    int64
	messageID int64
	text      string
	keyboard  *models.InlineKeyboardMarkup
	photo     string
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	edited   []sentMessage
	answered []string
	photoErr error
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, kb *models.InlineKeyboardMarkup) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: kb})
	return &models.Message{MessageID: int64(len(f.sent)), Chat: models.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, kb *models.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, sentMessage{chatID: chatID, messageID: messageID, text: text, keyboard: kb})
	return nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMessenger) SendPhotoURL(_ context.Context, chatID int64, url, caption string, kb *models.InlineKeyboardMarkup) error {
	return f.photo(chatID, url, caption, kb)
}

func (f *fakeMessenger) SendPhotoFile(_ context.Context, chatID int64, path, caption string, kb *models.InlineKeyboardMarkup) error {
	return f.photo(chatID, path, caption, kb)
}

func (f *fakeMessenger) photo(chatID int64, photo, caption string, kb *models.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.photoErr != nil {
		return f.photoErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: caption, keyboard: kb, photo: photo})
	return nil
}

func (f *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "nothing was sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeMessenger) lastEdit(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.edited, "nothing was edited")
	return f.edited[len(f.edited)-1]
}

type fakeFiles struct {
	data []byte
}

func (f fakeFiles) GetFile(_ context.Context, fileID string) (*models.File, error) {
	return &models.File{FileID: fileID, FilePath: "photos/" + fileID + ".jpg"}, nil
}

func (f fakeFiles) DownloadFile(context.Context, string) ([]byte, error) {
	return f.data, nil
}

type fixture struct {
	svc    *Service
	msg    *fakeMessenger
	store  *durable.Store
	imgDir string
}

func newFixture(t *testing.T, rows ...models.Instrument) *fixture {
	t.Helper()
	dir := t.TempDir()

	store := durable.New(durable.Options{Path: filepath.Join(dir, "tools.xlsx")})
	store.Load()
	for _, row := range rows {
		_, err := store.Add(context.Background(), row)
		require.NoError(t, err)
	}

	sessions := session.NewStore(time.Minute, nil)
	browse := session.NewBrowseStore(time.Minute)
	t.Cleanup(sessions.Close)
	t.Cleanup(browse.Close)

	imgDir := filepath.Join(dir, "images")
	repo := images.NewRepository(imgDir, nil, "", nil)
	saver := NewPhotoSaver(fakeFiles{data: []byte("png-bytes")}, repo, nil)

	msg := &fakeMessenger{}
	svc := NewService(Options{
		Messenger: msg,
		Engine:    wizard.NewEngine(sessions, store, saver, nil, nil),
		Store:     store,
		Catalog:   catalog.New(store.Table(), 5),
		Browse:    browse,
		Images:    repo,
	})
	return &fixture{svc: svc, msg: msg, store: store, imgDir: imgDir}
}

func (f *fixture) text(t *testing.T, text string) sentMessage {
	t.Helper()
	require.NoError(t, f.svc.HandleUpdate(context.Background(), models.Update{
		Message: &models.Message{From: &models.User{ID: userID}, Chat: models.Chat{ID: chatID}, Text: text},
	}))
	return f.msg.last(t)
}

func (f *fixture) press(t *testing.T, data string, messageID int64) {
	t.Helper()
	require.NoError(t, f.svc.HandleUpdate(context.Background(), models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:      "cb-" + data,
			From:    models.User{ID: userID},
			Message: &models.Message{MessageID: messageID, Chat: models.Chat{ID: chatID}},
			Data:    data,
		},
	}))
}

func callbacks(kb *models.InlineKeyboardMarkup) []string {
	var out []string
	if kb == nil {
		return out
	}
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}

func TestStartShowsMenu(t *testing.T) {
	f := newFixture(t)

	got := f.text(t, "/start")
	assert.Contains(t, got.text, "Tool inventory")
	assert.Equal(t, chatID, got.chatID)
	assert.Contains(t, callbacks(got.keyboard), "list:0")
	assert.Contains(t, callbacks(got.keyboard), "add")
}

func TestAddInstrumentConversation(t *testing.T) {
	f := newFixture(t)

	got := f.text(t, "/add")
	assert.Contains(t, got.text, "step 1 of 6")
	assert.NotContains(t, callbacks(got.keyboard), "wiz:back:name")

	got = f.text(t, "Drill")
	assert.Contains(t, callbacks(got.keyboard), "wiz:skip:model")

	f.press(t, "wiz:skip:model", 2)
	assert.Contains(t, f.msg.last(t).text, "manufacturer")

	f.text(t, "Bosch")

	f.press(t, "wiz:back:quantity", 4)
	got = f.msg.last(t)
	assert.Contains(t, got.text, "Current value: Bosch")
	f.text(t, "Bosch")

	got = f.text(t, "/skip")
	assert.Contains(t, got.text, "This step cannot be skipped.")

	f.text(t, "3")
	f.text(t, "skip")
	got = f.text(t, "skip")

	assert.Contains(t, got.text, "Instrument saved")
	assert.Contains(t, got.text, "<b>№1 Drill</b>")
	assert.Contains(t, got.text, "Model: not specified")
	assert.Contains(t, got.text, "Manufacturer: Bosch")
	assert.Contains(t, got.text, "Saved to the local file.")

	rec, err := f.store.Table().Get(1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, rec.Quantity)
	assert.Equal(t, "Bosch", rec.Manufacturer)
}

func TestStaleButtonIsRejected(t *testing.T) {
	f := newFixture(t)

	f.text(t, "/add")
	f.text(t, "Drill")
	f.text(t, "X1")

	f.press(t, "wiz:skip:model", 2)
	got := f.msg.last(t)
	assert.Contains(t, got.text, "earlier step")
	assert.Contains(t, got.text, "step 3 of 6")
}

func TestCancelLeavesTableUnchanged(t *testing.T) {
	f := newFixture(t, models.Instrument{Name: "Saw", Quantity: 1})

	f.text(t, "/add")
	f.text(t, "Drill")
	f.press(t, "wiz:cancel", 3)

	assert.Contains(t, f.msg.last(t).text, "Cancelled")
	assert.Equal(t, 1, f.store.Table().Len())

	got := f.text(t, "anything")
	assert.Contains(t, got.text, "I did not understand")
}

func TestPhotoAtImageStep(t *testing.T) {
	f := newFixture(t)

	f.text(t, "/add")
	f.text(t, "Drill")
	f.text(t, "skip")
	f.text(t, "skip")
	f.text(t, "2")

	require.NoError(t, f.svc.HandleUpdate(context.Background(), models.Update{
		Message: &models.Message{
			From:  &models.User{ID: userID},
			Chat:  models.Chat{ID: chatID},
			Photo: []models.PhotoSize{{FileID: "small", Width: 90, Height: 90}, {FileID: "large", Width: 800, Height: 600}},
		},
	}))
	assert.Contains(t, f.msg.last(t).text, "step 6 of 6")

	got := f.text(t, "skip")
	assert.Contains(t, got.text, "Image: photo attached")

	data, err := os.ReadFile(filepath.Join(f.imgDir, "image1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	rec, err := f.store.Table().Get(1)
	require.NoError(t, err)
	assert.Empty(t, rec.ImageURL)
}

func TestPhotoWithoutWorkflow(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.HandleUpdate(context.Background(), models.Update{
		Message: &models.Message{From: &models.User{ID: userID}, Chat: models.Chat{ID: chatID}, Photo: []models.PhotoSize{{FileID: "p"}}},
	}))
	assert.Contains(t, f.msg.last(t).text, "Photos are accepted")
}

func TestSearchAndBrowse(t *testing.T) {
	f := newFixture(t,
		models.Instrument{Name: "Drill", Quantity: 5},
		models.Instrument{Name: "Driver", Quantity: 2},
		models.Instrument{Name: "Saw", Quantity: 1},
	)

	got := f.text(t, "/search dri")
	assert.Contains(t, got.text, "Results for “dri”: 2 found")
	assert.Equal(t, []string{"item:1", "item:2", "menu"}, callbacks(got.keyboard))

	f.press(t, "item:2", 10)
	card := f.msg.last(t)
	assert.Contains(t, card.text, "№2 Driver")
	assert.Contains(t, callbacks(card.keyboard), "edit:2")

	f.press(t, "back", 11)
	assert.Contains(t, f.msg.lastEdit(t).text, "Results for “dri”")

	f.press(t, "search", 11)
	assert.Contains(t, f.msg.last(t).text, "Send part of the instrument name")
	got = f.text(t, "SAW")
	assert.Contains(t, got.text, "1 found")

	got = f.text(t, "hammer")
	assert.Contains(t, got.text, "I did not understand", "a finished search no longer captures text")
}

func TestListPaging(t *testing.T) {
	var rows []models.Instrument
	for i := 0; i < 7; i++ {
		rows = append(rows, models.Instrument{Name: "Tool", Quantity: float64(i)})
	}
	f := newFixture(t, rows...)

	got := f.text(t, "/list")
	assert.Contains(t, got.text, "7 instruments")
	assert.Contains(t, callbacks(got.keyboard), "list:1")
	assert.NotContains(t, callbacks(got.keyboard), "item:6")

	f.press(t, "list:1", 1)
	edit := f.msg.lastEdit(t)
	assert.Equal(t, int64(1), edit.messageID)
	assert.Equal(t, []string{"item:6", "item:7", "list:0", "noop", "menu"}, callbacks(edit.keyboard))
}

func TestEditAmount(t *testing.T) {
	f := newFixture(t, models.Instrument{Name: "Drill", Quantity: 5})

	f.press(t, "edit:1", 1)
	assert.Contains(t, f.msg.last(t).text, "new amount for <b>Drill</b> (now 5)")

	got := f.text(t, "abc")
	assert.Contains(t, got.text, "Quantity must be a number.")

	got = f.text(t, "8")
	assert.Contains(t, got.text, "changed from 5 to 8")

	rec, err := f.store.Table().Get(1)
	require.NoError(t, err)
	assert.Equal(t, 8.0, rec.Quantity)

	reloaded := durable.New(durable.Options{Path: f.store.Path()})
	reloaded.Load()
	rec, err = reloaded.Table().Get(1)
	require.NoError(t, err)
	assert.Equal(t, 8.0, rec.Quantity)

	got = f.text(t, "9")
	assert.Contains(t, got.text, "I did not understand", "no edit is pending any more")
}

func TestEditAmountOfMissingInstrument(t *testing.T) {
	f := newFixture(t)

	f.press(t, "edit:4", 1)
	assert.Contains(t, f.msg.last(t).text, "№4 was not found")
}

func TestDeleteWithConfirmation(t *testing.T) {
	f := newFixture(t,
		models.Instrument{Name: "Drill", Quantity: 5},
		models.Instrument{Name: "Saw", Quantity: 1},
	)

	f.press(t, "del:1", 3)
	got := f.msg.last(t)
	assert.Contains(t, got.text, "Delete <b>№1 Drill</b>?")
	assert.Equal(t, []string{"delok:1", "item:1"}, callbacks(got.keyboard))

	f.press(t, "delok:1", 4)
	assert.Contains(t, f.msg.lastEdit(t).text, "deleted")

	_, err := f.store.Table().Get(1)
	assert.Error(t, err)
	assert.Equal(t, 1, f.store.Table().Len())

	f.press(t, "delok:1", 4)
	assert.Contains(t, f.msg.lastEdit(t).text, "was not found")
}

func TestNewInstrumentDoesNotInheritDeletedPhoto(t *testing.T) {
	f := newFixture(t,
		models.Instrument{Name: "Drill", Quantity: 5},
		models.Instrument{Name: "Saw", Quantity: 1},
	)
	require.NoError(t, os.MkdirAll(f.imgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.imgDir, "image2.png"), []byte("saw"), 0o644))

	f.press(t, "del:2", 3)
	f.press(t, "delok:2", 4)
	assert.NoFileExists(t, filepath.Join(f.imgDir, "image2.png"))

	f.text(t, "/add")
	f.text(t, "Hammer")
	f.text(t, "skip")
	f.text(t, "skip")
	f.text(t, "1")
	f.text(t, "skip")
	got := f.text(t, "skip")

	assert.Contains(t, got.text, "<b>№3 Hammer</b>")
	assert.Contains(t, got.text, "Image: not specified")

	_, err := f.store.Table().Get(2)
	assert.Error(t, err, "the deleted number stays unused")

	f.press(t, "item:3", 5)
	assert.Empty(t, f.msg.last(t).photo)
}

func TestAddDropsPendingSearchPrompt(t *testing.T) {
	f := newFixture(t, models.Instrument{Name: "Drill", Quantity: 5})

	f.text(t, "/search")
	f.text(t, "/add")
	f.text(t, "/cancel")

	got := f.text(t, "drill")
	assert.Contains(t, got.text, "I did not understand")
	assert.False(t, f.svc.browse.Get(userID).AwaitingTerm)
}

func TestCardPhotoFallsBackToText(t *testing.T) {
	f := newFixture(t, models.Instrument{Name: "Drill", Quantity: 5, ImageURL: "https://img.test/drill.png"})
	f.msg.photoErr = assert.AnError

	f.press(t, "item:1", 1)
	got := f.msg.last(t)
	assert.Empty(t, got.photo)
	assert.Contains(t, got.text, "https://img.test/drill.png")
}

func TestLinkAndSyncWithoutRemote(t *testing.T) {
	f := newFixture(t, models.Instrument{Name: "Drill", Quantity: 5})

	f.press(t, "link", 1)
	got := f.msg.last(t)
	assert.Contains(t, got.text, "not available yet")
	assert.Contains(t, got.text, "tools.xlsx")
	assert.Contains(t, got.text, "Instruments: 1")

	got = f.text(t, "/sync")
	assert.Contains(t, got.text, "No remote copy is configured")
}

func TestCallbacksAreAnswered(t *testing.T) {
	f := newFixture(t)

	f.press(t, "garbage", 1)
	f.press(t, "noop", 1)

	assert.Equal(t, []string{"cb-garbage", "cb-noop"}, f.msg.answered)
	assert.Contains(t, f.msg.last(t).text, "I did not understand")
}

func TestConcurrentUsersKeepSeparateWorkflows(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for u := int64(1); u <= 8; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			for _, text := range []string{"/add", "Tool " + strings.Repeat("x", int(u)), "skip", "skip", "1", "skip", "skip"} {
				err := f.svc.HandleUpdate(context.Background(), models.Update{
					Message: &models.Message{From: &models.User{ID: u}, Chat: models.Chat{ID: u}, Text: text},
				})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 8, f.store.Table().Len())
	assert.Equal(t, 0, f.svc.locks.len())
}

func TestSendOutbound(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.SendOutbound(context.Background(), models.OutboundMessageRequest{ChatID: 77, Message: "a < b"}))
	got := f.msg.last(t)
	assert.Equal(t, int64(77), got.chatID)
	assert.Equal(t, "a &lt; b", got.text)
}
