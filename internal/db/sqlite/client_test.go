package sqlite

import (
	"context"
	"testing"

	"github.com/groupmate/groupmate/internal/db"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func studentChat(id, groupID int64) *db.Chat {
	role := db.RoleOrdinary
	familiarity := db.NewFamiliarity()
	return &db.Chat{
		ID:          id,
		Type:        db.ChatTypePrivate,
		Username:    "@student",
		Language:    db.LanguageUK,
		GroupID:     groupID,
		Role:        &role,
		Familiarity: &familiarity,
		Registered:  "2025.09.01 10:00:00",
	}
}

func TestInstitutionNamesAreUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	first := &db.Institution{ID: 100, Name: "KPI", City: "Kyiv", Departments: "FICT\nFPM"}
	if err := client.CreateInstitution(ctx, first); err != nil {
		t.Fatalf("create institution: %v", err)
	}
	dup := &db.Institution{ID: 101, Name: "KPI", City: "Lviv", Departments: "FICT"}
	if err := client.CreateInstitution(ctx, dup); err == nil {
		t.Fatalf("expected uniqueness violation on name")
	}

	got, err := client.GetInstitutionByName(ctx, "KPI")
	if err != nil {
		t.Fatalf("get institution: %v", err)
	}
	if got.City != "Kyiv" {
		t.Fatalf("unexpected institution: %#v", got)
	}
}

func TestChatRequiresRegisteredTimestamp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.db.ExecContext(ctx,
		`INSERT INTO chats (id, type, username, language, group_id) VALUES (?, ?, ?, ?, ?)`,
		1, 0, "@student", 0, 100000)
	if err == nil {
		t.Fatalf("expected not-null violation on registered")
	}
}

func TestGroupWithOnlyNameSucceeds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if err := client.CreateGroup(ctx, &db.Group{ID: 100000, Name: "IP-25"}); err != nil {
		t.Fatalf("create group: %v", err)
	}

	group, err := client.GetGroup(ctx, 100000)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if group.Graduation != nil || group.Info != nil || group.Events != nil {
		t.Fatalf("optional columns must be null: %#v", group)
	}
}

func TestECampusLoginsAreUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if err := client.LinkECampusAccount(ctx, &db.ECampusAccount{ChatID: 1, Login: "vb123", Password: "secret"}); err != nil {
		t.Fatalf("link account: %v", err)
	}
	err := client.LinkECampusAccount(ctx, &db.ECampusAccount{ChatID: 2, Login: "vb123", Password: "other"})
	if err == nil {
		t.Fatalf("expected uniqueness violation on login")
	}
}

func TestECampusAllowsSeveralLoginsPerChat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if err := client.LinkECampusAccount(ctx, &db.ECampusAccount{ChatID: 7, Login: "first", Password: "a"}); err != nil {
		t.Fatalf("link first account: %v", err)
	}
	if err := client.LinkECampusAccount(ctx, &db.ECampusAccount{ChatID: 7, Login: "second", Password: "b"}); err != nil {
		t.Fatalf("link second account: %v", err)
	}

	accounts, err := client.ECampusAccounts(ctx, 7)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Points != nil {
		t.Fatalf("points must start null: %#v", accounts[0])
	}
}

func TestECampusPointsUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if err := client.LinkECampusAccount(ctx, &db.ECampusAccount{ChatID: 9, Login: "points", Password: "p"}); err != nil {
		t.Fatalf("link account: %v", err)
	}
	if err := client.UpdateECampusPoints(ctx, "points", 87); err != nil {
		t.Fatalf("update points: %v", err)
	}

	accounts, err := client.ECampusAccounts(ctx, 9)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if accounts[0].Points == nil || *accounts[0].Points != 87 {
		t.Fatalf("unexpected points: %#v", accounts[0])
	}
}

func TestChatRoundTripAndNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.GetChat(ctx, 404); err != db.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	chat := studentChat(42, 100000)
	if err := client.CreateChat(ctx, chat); err != nil {
		t.Fatalf("create chat: %v", err)
	}

	got, err := client.GetChat(ctx, 42)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Username != "@student" || got.GroupID != 100000 {
		t.Fatalf("unexpected chat: %#v", got)
	}
	if got.Role == nil || *got.Role != db.RoleOrdinary {
		t.Fatalf("unexpected role: %#v", got.Role)
	}
	if got.Familiarity == nil || got.Familiarity.Has(db.FamiliarTrust) {
		t.Fatalf("unexpected familiarity: %#v", got.Familiarity)
	}
	if got.Feedback != nil {
		t.Fatalf("feedback must start null")
	}
}

func TestGroupChatHasNullRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	chat := &db.Chat{
		ID:         -100500,
		Type:       db.ChatTypeSupergroup,
		Username:   "ip25 chat",
		Language:   db.LanguageUK,
		GroupID:    100000,
		Registered: "2025.09.01 11:00:00",
	}
	if err := client.CreateChat(ctx, chat); err != nil {
		t.Fatalf("create group chat: %v", err)
	}

	got, err := client.GetChat(ctx, -100500)
	if err != nil {
		t.Fatalf("get group chat: %v", err)
	}
	if got.Role != nil || got.Familiarity != nil {
		t.Fatalf("group chat must have null role and familiarity: %#v", got)
	}
}
