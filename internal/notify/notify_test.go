package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"questlog/internal/db"
	"questlog/internal/models"
	"questlog/internal/planner"
	"questlog/internal/schedule"
	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openNotifyTestStores(t *testing.T) *db.Stores {
	t.Helper()
	open := func(dst ...interface{}) *gorm.DB {
		t.Helper()
		conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		if err := conn.AutoMigrate(dst...); err != nil {
			t.Fatalf("migrate test db: %v", err)
		}
		return conn
	}
	return &db.Stores{
		Planner: open(
			&models.Quest{}, &models.Milestone{}, &models.Checkpoint{},
			&models.Commit{}, &models.ProgressHistoryEntry{}, &models.Assessment{},
		),
		Schedule: open(&models.ScheduleBlock{}),
		Tasks:    open(&models.Task{}, &models.CompletionRecord{}),
	}
}

func TestNotifier_FanOut(t *testing.T) {
	first := NewMockAdapter()
	second := NewMockAdapter()
	second.Err = errors.New("rate limited")
	third := NewMockAdapter()

	n := New(first, second, third)
	n.Send(context.Background(), Event{Type: EventDailyDigest, Title: "test"})

	// The failing adapter doesn't stop delivery to the rest.
	for i, a := range []*MockAdapter{first, second, third} {
		if got := len(a.Sent()); got != 1 {
			t.Errorf("adapter %d received %d events, want 1", i, got)
		}
	}

	n.Close()
	if !first.Closed() || !third.Closed() {
		t.Error("adapters not closed")
	}
}

func TestBuildDailyReport(t *testing.T) {
	stores := openNotifyTestStores(t)
	now := time.Now()

	quest, err := planner.CreateQuest(stores.Planner, planner.QuestOpts{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("seed quest: %v", err)
	}
	if _, err := planner.CreateCommit(stores.Planner, planner.CommitOpts{
		QuestID: quest.ID, CommitDate: "2026-09-01", Content: "Today's work.",
	}); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	entries := []models.ProgressHistoryEntry{
		{CheckpointID: "cp-one11", PreviousProgress: 40, NewProgress: 70},
		{CheckpointID: "cp-two22", PreviousProgress: 80, NewProgress: 100},
	}
	for i := range entries {
		if err := stores.Planner.Create(&entries[i]).Error; err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	block, err := schedule.CreateBlock(stores.Schedule, schedule.BlockOpts{
		Date: "2026-09-01", StartTime: "09:00", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("seed block: %v", err)
	}
	if err := stores.Schedule.Model(block).Update("status", models.BlockCompleted).Error; err != nil {
		t.Fatalf("complete block: %v", err)
	}

	report, err := BuildDailyReport(stores, now)
	if err != nil {
		t.Fatalf("BuildDailyReport: %v", err)
	}
	if report.CommitsSubmitted != 1 {
		t.Errorf("CommitsSubmitted = %d, want 1", report.CommitsSubmitted)
	}
	if report.CheckpointsAdvanced != 2 || report.CheckpointsCompleted != 1 {
		t.Errorf("checkpoints = %d advanced / %d completed, want 2/1",
			report.CheckpointsAdvanced, report.CheckpointsCompleted)
	}
	if report.BlocksCompleted != 1 {
		t.Errorf("BlocksCompleted = %d, want 1", report.BlocksCompleted)
	}
	if report.Empty() {
		t.Error("Empty() = true with activity present")
	}

	ev := DigestEvent(report)
	if ev == nil {
		t.Fatal("DigestEvent = nil with activity present")
	}
	if ev.Type != EventDailyDigest {
		t.Errorf("Type = %q, want daily_digest", ev.Type)
	}
	if !strings.Contains(ev.Body, "Commits submitted: 1") {
		t.Errorf("Body = %q, want commit count", ev.Body)
	}
}

func TestDigestEvent_EmptyPeriod(t *testing.T) {
	stores := openNotifyTestStores(t)

	report, err := BuildDailyReport(stores, time.Now())
	if err != nil {
		t.Fatalf("BuildDailyReport: %v", err)
	}
	if !report.Empty() {
		t.Fatalf("report = %+v, want empty", report)
	}
	if ev := DigestEvent(report); ev != nil {
		t.Errorf("DigestEvent = %+v, want nil for an empty period", ev)
	}
}

type fakeSlackClient struct {
	channels []string
	options  [][]slackapi.MsgOption
	err      error
}

func (f *fakeSlackClient) PostMessageContext(_ context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	f.options = append(f.options, options)
	return "", "", f.err
}

func TestSlackAdapter(t *testing.T) {
	if _, err := NewSlack(SlackOpts{Channel: "#x"}); err == nil {
		t.Error("missing token: err = nil, want error")
	}
	if _, err := NewSlack(SlackOpts{BotToken: "xoxb-test"}); err == nil {
		t.Error("missing channel: err = nil, want error")
	}

	client := &fakeSlackClient{}
	a, err := NewSlack(SlackOpts{Channel: "#progress", Client: client})
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}
	if err := a.Send(context.Background(), Event{Title: "hi", Severity: "success"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.channels) != 1 || client.channels[0] != "#progress" {
		t.Errorf("posted to %v, want [#progress]", client.channels)
	}

	client.err = errors.New("channel_not_found")
	if err := a.Send(context.Background(), Event{Title: "hi"}); err == nil {
		t.Error("post failure: err = nil, want error")
	}
}

type fakeDiscordSession struct {
	embeds []*discordgo.MessageEmbed
	closed bool
	err    error
}

func (f *fakeDiscordSession) ChannelMessageSendEmbed(_ string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.embeds = append(f.embeds, embed)
	return nil, f.err
}

func (f *fakeDiscordSession) Close() error {
	f.closed = true
	return nil
}

func TestDiscordAdapter(t *testing.T) {
	session := &fakeDiscordSession{}
	a, err := NewDiscord(DiscordOpts{Channel: "123", Session: session})
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}

	ev := Event{
		Title:    "Checkpoint completed",
		Body:     "all done",
		Severity: "success",
		Fields:   []Field{{Name: "Checkpoint", Value: "cp-abc12"}},
	}
	if err := a.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(session.embeds) != 1 {
		t.Fatalf("embeds sent = %d, want 1", len(session.embeds))
	}
	embed := session.embeds[0]
	if embed.Title != ev.Title || embed.Description != ev.Body {
		t.Errorf("embed = %+v, want title and body copied", embed)
	}
	if embed.Color != 0x36a64f {
		t.Errorf("Color = %#x, want success green", embed.Color)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Value != "cp-abc12" {
		t.Errorf("Fields = %+v, want the checkpoint field", embed.Fields)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !session.closed {
		t.Error("session not closed")
	}
}

func TestStartDigestCron_BadExpression(t *testing.T) {
	stores := openNotifyTestStores(t)
	if _, err := StartDigestCron("not a cron", stores, New()); err == nil {
		t.Error("bad expression: err = nil, want error")
	}

	c, err := StartDigestCron("0 21 * * *", stores, New())
	if err != nil {
		t.Fatalf("StartDigestCron: %v", err)
	}
	c.Stop()
}
