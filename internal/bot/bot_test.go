package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/telegram"
)

const chatID int64 = 4242

type BotTestSuite struct {
	suite.Suite

	tg       *fakeTelegram
	users    *fakeUsers
	areas    *fakeAreas
	findings *fakeFindings
	sessions *MemoryStore
	bot      *Bot
	nextID   int64
}

func (s *BotTestSuite) SetupTest() {
	s.tg = &fakeTelegram{}
	s.users = newFakeUsers()
	s.areas = &fakeAreas{roots: []entities.Area{
		{ID: uuid.New(), Name: "Production", Level: 1},
		{ID: uuid.New(), Name: "Warehouse", Level: 1},
	}}
	s.findings = &fakeFindings{}
	s.sessions = NewMemoryStore(30*time.Minute, 100)
	s.bot = New(s.users, s.areas, s.findings, s.tg, s.sessions, zap.NewNop())
}

func TestBotSuite(t *testing.T) {
	suite.Run(t, new(BotTestSuite))
}

func (s *BotTestSuite) update() telegram.Update {
	s.nextID++
	return telegram.Update{UpdateID: s.nextID}
}

func (s *BotTestSuite) say(text string) outgoing {
	u := s.update()
	u.Message = &telegram.Message{
		MessageID: int(s.nextID),
		From:      &telegram.User{ID: chatID, FirstName: "Jordan", Username: "jreyes"},
		Chat:      telegram.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
	s.bot.Process(context.Background(), u)
	return s.tg.last()
}

func (s *BotTestSuite) sendPhoto() outgoing {
	u := s.update()
	u.Message = &telegram.Message{
		MessageID: int(s.nextID),
		From:      &telegram.User{ID: chatID},
		Chat:      telegram.Chat{ID: chatID},
		Photo: []telegram.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	}
	s.bot.Process(context.Background(), u)
	return s.tg.last()
}

func (s *BotTestSuite) press(data string) outgoing {
	u := s.update()
	u.CallbackQuery = &telegram.CallbackQuery{
		ID:      fmt.Sprintf("cb-%d", s.nextID),
		From:    telegram.User{ID: chatID},
		Message: &telegram.Message{MessageID: 77, Chat: telegram.Chat{ID: chatID}},
		Data:    data,
	}
	s.bot.Process(context.Background(), u)
	return s.tg.last()
}

func (s *BotTestSuite) session() *Session {
	sess, err := s.sessions.Get(context.Background(), chatID)
	s.Require().NoError(err)
	return sess
}

func (s *BotTestSuite) TestStart() {
	s.Contains(s.say("/start").Text, "I see you're new here")

	s.users.add(chatID, true)
	out := s.say("/start@SafetyBot")
	s.Contains(out.Text, "Welcome back, Jordan Reyes!")
	s.Contains(out.Text, "Staff ID: S-1001")
}

func (s *BotTestSuite) TestRegistrationFlow() {
	s.Equal(msgRegisterStart, s.say("/register").Text)
	s.Equal(StepAskFullName, s.session().Step)

	s.Contains(s.say("  Jordan Reyes ").Text, "Nice to meet you, Jordan Reyes!")

	s.Equal(msgStaffIDShort, s.say("7").Text)
	out := s.say("S-2002")
	s.Equal(msgAskDepartment, out.Text)
	s.Contains(out.Markup, `"keyboard"`)
	s.Contains(out.Markup, "Quality Assurance")

	s.Contains(s.say("Accounting").Text, "Please select from the list: Production, Quality Assurance")
	out = s.say("quality assurance")
	s.Contains(out.Text, "What is your section within Quality Assurance?")
	s.Contains(out.Markup, `"remove_keyboard":true`)

	s.Equal(msgAskSection, s.say("").Text)
	s.Contains(s.say("QC Team").Text, "Reply 'YES' to confirm")
	s.Equal(StepConfirm, s.session().Step)

	s.Contains(s.say("Yes").Text, "Registration complete! 🎉")
	s.Nil(s.session())

	s.Require().Len(s.users.registered, 1)
	reg := s.users.registered[0]
	s.Equal(chatID, reg.TelegramID)
	s.Equal("Jordan Reyes", reg.FullName)
	s.Equal("S-2002", reg.StaffID)
	s.Equal("Quality Assurance", reg.Department)
	s.Equal("QC Team", reg.Section)
	s.Require().NotNil(reg.Username)
	s.Equal("jreyes", *reg.Username)

	s.Equal(msgAlreadyRegister, s.say("/register").Text)
}

func (s *BotTestSuite) TestRegistrationDeclinedAndDuplicate() {
	s.say("/register")
	s.say("Jordan Reyes")
	s.say("S-2002")
	s.say("Safety")
	s.say("Night Shift")
	s.Equal(msgRegisterCancelled, s.say("nope").Text)
	s.Nil(s.session())
	s.Empty(s.users.registered)

	s.users.registerErr = apperrors.NewConflictError("User with this staff ID already exists")
	s.say("/register")
	s.say("Jordan Reyes")
	s.say("S-2002")
	s.say("Safety")
	s.say("Night Shift")
	s.Equal(msgStaffIDTaken, s.say("y").Text)
	s.Nil(s.session())
}

func (s *BotTestSuite) TestRegistrationWithLinkedTelegramAccount() {
	s.users.registerErr = apperrors.NewHttpError(http.StatusBadRequest, "This Telegram account is already registered", apperrors.ErrTelegramTaken, nil)
	s.say("/register")
	s.say("Jordan Reyes")
	s.say("S-3003")
	s.say("Safety")
	s.say("Night Shift")
	s.Equal(msgTelegramTaken, s.say("yes").Text)
	s.Nil(s.session())
}

func (s *BotTestSuite) TestReportFlowWithPhoto() {
	reporter := s.users.add(chatID, true)
	area := s.areas.roots[1]

	out := s.say("/report")
	s.Equal(msgReportStart, out.Text)
	s.Contains(out.Markup, "area_"+area.ID.String())

	s.Equal(msgUseAreaButtons, s.say("Warehouse").Text)

	out = s.press("area_" + area.ID.String())
	s.True(out.Edit)
	s.Equal(77, out.MessageID)
	s.Equal(msgAskDescription, out.Text)

	s.Equal(msgDescriptionShort, s.say("oil").Text)
	s.Equal(msgAskPhoto, s.say("Oil spill next to the forklift charging bay").Text)

	s.Equal(msgPhotoOrSkip, s.say("maybe").Text)
	out = s.sendPhoto()
	s.Equal(msgAskSeverity, out.Text)
	for _, sev := range []string{"sev_low", "sev_medium", "sev_high", "sev_critical"} {
		s.Contains(out.Markup, sev)
	}
	s.Equal("large", s.session().Report.PhotoFileID)

	s.Equal(msgUseSeverityButtons, s.say("high").Text)
	s.Equal(msgAskLocation, s.press("sev_high").Text)

	out = s.say("Bay 4")
	s.Contains(out.Text, "Your safety finding has been recorded (with photo)! ✅")
	s.Contains(out.Text, "Report ID: SF-2024-0001")
	s.Contains(out.Text, "Severity: 🟠 High")
	s.Contains(out.Text, "Status: Open")
	s.Nil(s.session())

	s.Require().Len(s.findings.created, 1)
	cmd := s.findings.created[0]
	s.Equal(reporter.ID, cmd.ReporterID)
	s.Equal(area.ID, cmd.AreaID)
	s.Equal(entities.SeverityHigh, cmd.Severity)
	s.Require().NotNil(cmd.Location)
	s.Equal("Bay 4", *cmd.Location)
	s.Require().Len(cmd.Photos, 1)
	s.Equal("file_7.jpg", cmd.Photos[0].FileName)
	s.Equal([]byte("jpeg-bytes"), s.findings.photos[0])
	s.NotEmpty(s.tg.answered)
}

func (s *BotTestSuite) TestReportSkipsPhotoAndLocation() {
	s.users.add(chatID, true)
	s.say("/report")
	s.press("area_" + s.areas.roots[0].ID.String())
	s.say("Blocked fire exit on the east side")
	s.Equal(msgAskSeverity, s.say("SKIP").Text)
	s.press("sev_low")
	s.Equal(msgLocationMissing, s.say(" ").Text)
	out := s.say("-")
	s.Contains(out.Text, "has been recorded! ✅")

	s.Require().Len(s.findings.created, 1)
	s.Nil(s.findings.created[0].Location)
	s.Empty(s.findings.created[0].Photos)
}

func (s *BotTestSuite) TestReportRefusals() {
	s.Equal(msgNotRegistered, s.say("/report").Text)
	s.Equal(msgNotRegistered, s.say("/myreports").Text)

	s.users.add(chatID, false)
	s.Equal(msgInactive, s.say("/report").Text)
	s.Nil(s.session())

	s.users.add(chatID, true)
	s.areas.roots = nil
	s.Equal(msgNoAreas, s.say("/report").Text)
	s.Nil(s.session())
}

func (s *BotTestSuite) TestCancelInEveryStep() {
	s.users.add(chatID, true)
	steps := []func(){
		func() {},
		func() { s.press("area_" + s.areas.roots[0].ID.String()) },
		func() { s.say("Loose handrail on stairs") },
		func() { s.say("skip") },
		func() { s.press("sev_medium") },
	}
	for i := range steps {
		s.say("/report")
		for _, step := range steps[:i+1] {
			step()
		}
		s.Require().NotNil(s.session())
		s.Equal(msgReportCancelled, s.say("/cancel").Text, "step %d", i)
		s.Nil(s.session())
	}
	s.Empty(s.findings.created)

	s.users.byTelegram = map[int64]*entities.User{}
	s.say("/register")
	s.say("Jordan")
	s.Equal(msgRegisterCancelled, s.say("/cancel").Text)
	s.Equal(msgCancelled, s.say("/cancel").Text)
}

func (s *BotTestSuite) TestReportRetryExhaustedKeepsSession() {
	s.users.add(chatID, true)
	s.say("/report")
	s.press("area_" + s.areas.roots[0].ID.String())
	s.say("Unguarded conveyor pulley")
	s.say("skip")
	s.press("sev_critical")

	s.findings.createErr = apperrors.ErrRetryExhausted
	s.Equal(msgRegisterBusy, s.say("Line 2").Text)
	s.Require().NotNil(s.session())
	s.Equal(StepLocation, s.session().Step)

	s.findings.createErr = nil
	s.Contains(s.say("Line 2").Text, "Severity: 🔴 Critical")
}

func (s *BotTestSuite) TestReportFailures() {
	s.users.add(chatID, true)
	walk := func() {
		s.say("/report")
		s.press("area_" + s.areas.roots[0].ID.String())
		s.say("Frayed cable on grinder")
		s.sendPhoto()
		s.press("sev_high")
	}

	s.tg.downloadErr = errors.New("file is too big")
	walk()
	s.Equal(msgPhotoFailed, s.say("Workshop").Text)
	s.Nil(s.session())

	s.tg.downloadErr = nil
	s.findings.createErr = fmt.Errorf("upload photo: %w: %w", apperrors.ErrStorage, errors.New("timeout"))
	walk()
	s.Equal(msgPhotoFailed, s.say("Workshop").Text)
	s.Nil(s.session())

	s.findings.createErr = errors.New("connection refused")
	walk()
	s.Equal(msgSaveFailed, s.say("Workshop").Text)
	s.Nil(s.session())
	s.Empty(s.findings.created)
}

func (s *BotTestSuite) TestStaleButtons() {
	s.users.add(chatID, true)
	s.Equal(msgButtonExpired, s.press("sev_high").Text)

	s.say("/report")
	s.Equal(msgButtonExpired, s.press("sev_high").Text)
	s.Equal(StepSelectArea, s.session().Step)
	s.Equal(msgUseAreaButtons, s.press("area_not-a-uuid").Text)
}

func (s *BotTestSuite) TestMyReports() {
	s.users.add(chatID, true)
	s.Contains(s.say("/myreports").Text, "You haven't reported any findings yet")

	s.findings.recent = []entities.Finding{
		{ReportID: "SF-2024-0002", Severity: entities.SeverityCritical, Status: entities.StatusInProgress,
			Description: strings.Repeat("x", 60) + " <b>"},
		{ReportID: "SF-2024-0001", Severity: entities.SeverityLow, Status: entities.StatusClosed, Description: "Short one"},
	}
	out := s.say("/myreports")
	s.Equal("HTML", out.ParseMode)
	s.Contains(out.Text, "Your recent findings (2)")
	s.Contains(out.Text, "🔴 <b>SF-2024-0002</b>\nStatus: In Progress\n"+strings.Repeat("x", 50)+"...")
	s.Contains(out.Text, "🟢 <b>SF-2024-0001</b>\nStatus: Closed\nShort one")
	s.NotContains(out.Text, "<b>\n")
}

func (s *BotTestSuite) TestMenu() {
	out := s.say("/menu")
	s.Equal(msgMenu, out.Text)
	s.Contains(out.Markup, "menu_profile")

	out = s.press("menu_profile")
	s.True(out.Edit)
	s.Contains(out.Text, "not registered yet")

	s.users.add(chatID, true)
	out = s.press("menu_profile")
	s.Contains(out.Text, "<b>Staff ID:</b> S-1001")
	s.Contains(out.Text, "<b>Role:</b> Reporter")
	s.Contains(out.Text, "<b>Joined:</b> 2024-03-01")
	s.Contains(out.Markup, "menu_back")

	s.Equal(msgMenu, s.press("menu_back").Text)
	s.Equal(msgHelp, s.press("menu_help").Text)

	s.Equal(msgReportStart, s.press("menu_report").Text)
	s.Equal(StepSelectArea, s.session().Step)
}

func (s *BotTestSuite) TestUnknownInput() {
	s.Equal(msgUnknownCommand, s.say("/dance").Text)
	s.Equal(msgNoConversation, s.say("hello").Text)
	s.Equal(msgHelp, s.say("/help").Text)
}

func (s *BotTestSuite) TestRegisterCommands() {
	s.Require().NoError(s.bot.RegisterCommands(context.Background()))
	s.Len(s.tg.commands, 7)
	s.Equal("start", s.tg.commands[0].Command)
}

func (s *BotTestSuite) TestHandleUpdateDropsDuplicatesAndStaleMessages() {
	s.bot.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	msg := func(id int64, date int64) telegram.Update {
		return telegram.Update{UpdateID: id, Message: &telegram.Message{
			From: &telegram.User{ID: chatID}, Chat: telegram.Chat{ID: chatID}, Date: date, Text: "/help",
		}}
	}

	s.bot.HandleUpdate(msg(1, 1_700_000_000))
	s.bot.HandleUpdate(msg(1, 1_700_000_000))
	s.bot.HandleUpdate(msg(2, 1_700_000_000-600))
	s.bot.HandleUpdate(msg(3, 1_700_000_000-30))
	s.bot.Wait()

	s.Equal(2, s.tg.count())
	s.Zero(s.bot.queue.size())
}

func (s *BotTestSuite) TestHandleUpdateKeepsChatOrder() {
	text := func(body string) telegram.Update {
		u := s.update()
		u.Message = &telegram.Message{
			MessageID: int(s.nextID),
			From:      &telegram.User{ID: chatID},
			Chat:      telegram.Chat{ID: chatID, Type: "private"},
			Text:      body,
		}
		return u
	}

	for i := 0; i < 50; i++ {
		s.say("/register")
		s.bot.HandleUpdate(text("Jane Doe"))
		s.bot.HandleUpdate(text("EMP42"))
		s.bot.Wait()

		sess := s.session()
		s.Require().NotNil(sess)
		s.Require().Equal("Jane Doe", sess.Registration.FullName, "run %d", i)
		s.Require().Equal("EMP42", sess.Registration.StaffID, "run %d", i)
		s.Require().Equal(StepAskDepartment, sess.Step)
		s.say("/cancel")
	}
	s.Zero(s.bot.queue.size())
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "report", commandName("/report"))
	assert.Equal(t, "report", commandName("/Report@SafetyBot now"))
	assert.Equal(t, "start", commandName("/start payload"))
}

type updateLog struct {
	mu  sync.Mutex
	ids map[int64][]int64
}

func (l *updateLog) add(u telegram.Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ids == nil {
		l.ids = make(map[int64][]int64)
	}
	l.ids[u.ChatID()] = append(l.ids[u.ChatID()], u.UpdateID)
}

func (l *updateLog) get(chat int64) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.ids[chat]...)
}

func chatUpdate(chat, id int64) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{Chat: telegram.Chat{ID: chat}}}
}

func TestChatDispatcherPreservesOrder(t *testing.T) {
	var log updateLog
	d := newChatDispatcher(4, func(u telegram.Update) {
		if u.UpdateID%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		log.add(u)
	})

	var want []int64
	for id := int64(1); id <= 100; id++ {
		d.Dispatch(1, chatUpdate(1, id))
		want = append(want, id)
	}
	d.Wait()

	assert.Equal(t, want, log.get(1))
	assert.Zero(t, d.size())
}

func TestChatDispatcherBusyChatHoldsOneSlot(t *testing.T) {
	var log updateLog
	release := make(chan struct{})
	otherDone := make(chan struct{})
	d := newChatDispatcher(2, func(u telegram.Update) {
		if u.UpdateID == 1 {
			<-release
		}
		log.add(u)
		if u.ChatID() == 2 {
			close(otherDone)
		}
	})

	for id := int64(1); id <= 3; id++ {
		d.Dispatch(1, chatUpdate(1, id))
	}
	d.Dispatch(2, chatUpdate(2, 10))

	select {
	case <-otherDone:
	case <-time.After(time.Second):
		t.Fatal("second chat waited behind the busy one")
	}
	assert.Empty(t, log.get(1))

	close(release)
	d.Wait()
	assert.Equal(t, []int64{1, 2, 3}, log.get(1))
	assert.Equal(t, []int64{10}, log.get(2))
}

func TestChatDispatcherBlocksWhenSlotsAreTaken(t *testing.T) {
	release := make(chan struct{})
	d := newChatDispatcher(1, func(u telegram.Update) {
		if u.ChatID() == 1 {
			<-release
		}
	})
	d.Dispatch(1, chatUpdate(1, 1))

	dispatched := make(chan struct{})
	go func() {
		d.Dispatch(2, chatUpdate(2, 2))
		close(dispatched)
	}()

	select {
	case <-dispatched:
		t.Fatal("dispatch started a worker without a free slot")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-dispatched:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not resume after the slot was freed")
	}
	d.Wait()
	assert.Zero(t, d.size())
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator()
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.True(t, d.TryAcquire("update:1", time.Minute))
	assert.False(t, d.TryAcquire("update:1", time.Minute))
	assert.True(t, d.TryAcquire("update:2", time.Minute))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.TryAcquire("update:1", time.Minute))
}

func TestMemoryStoreExpiryAndCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute, 2)
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &Session{ChatID: 1, Flow: FlowReport, Step: StepDescription}))
	now = now.Add(10 * time.Second)
	require.NoError(t, store.Save(ctx, &Session{ChatID: 2, Flow: FlowRegister, Step: StepAskFullName}))
	now = now.Add(10 * time.Second)
	require.NoError(t, store.Save(ctx, &Session{ChatID: 3, Flow: FlowRegister, Step: StepAskStaffID}))

	assert.Equal(t, 2, store.Len())
	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got, "oldest session is evicted when full")

	got, err = store.Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StepAskStaffID, got.Step)

	now = now.Add(time.Minute)
	got, err = store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, got, "expired")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(repositories.NewRedisCacheRepository(client), 30*time.Minute)
	ctx := context.Background()

	got, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)

	areaID := uuid.New()
	require.NoError(t, store.Save(ctx, &Session{
		ChatID: 9,
		Flow:   FlowReport,
		Step:   StepPhoto,
		Report: ReportDraft{AreaID: areaID, Description: "Wet floor", PhotoFileID: "abc"},
	}))
	assert.Equal(t, 30*time.Minute, mr.TTL("tg_session:9"))

	got, err = store.Get(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StepPhoto, got.Step)
	assert.Equal(t, areaID, got.Report.AreaID)
	assert.Equal(t, "abc", got.Report.PhotoFileID)

	mr.FastForward(31 * time.Minute)
	got, err = store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, &Session{ChatID: 9, Flow: FlowRegister, Step: StepConfirm}))
	require.NoError(t, store.Delete(ctx, 9))
	assert.False(t, mr.Exists("tg_session:9"))
}
