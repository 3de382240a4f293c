package roster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/groupmate/groupmate/internal/config"
	"github.com/groupmate/groupmate/internal/db"
	"github.com/groupmate/groupmate/internal/db/sqlite"
)

func testRosterConfig() config.Roster {
	return config.Roster{
		MaxGroupNameLength:     15,
		MinGroupmatesForLeader: 1,
		MaxAdminRatio:          1,
		FeedbackDelay:          7 * 24 * time.Hour,
	}
}

func newTestService(t *testing.T) (*Service, db.Client) {
	t.Helper()

	client, err := sqlite.NewClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewService(client, testRosterConfig()), client
}

// seedInstitution creates an institution with two departments, FICT and FPM.
// Distinct ids per test keep the derived group ids apart, the registry cache
// is shared process-wide.
func seedInstitution(t *testing.T, client db.Client, id int64) string {
	t.Helper()

	name := fmt.Sprintf("TUNI-%d", id)
	err := client.CreateInstitution(context.Background(), &db.Institution{
		ID:          id,
		Name:        name,
		City:        "Kyiv",
		Departments: "FICT\nFPM",
	})
	if err != nil {
		t.Fatalf("seed institution %d: %v", id, err)
	}
	return name
}

func register(t *testing.T, service *Service, chatID int64, institution string, chatType db.ChatType, group string) *db.Chat {
	t.Helper()

	chat, err := service.Register(context.Background(), Registration{
		ChatID:      chatID,
		Type:        chatType,
		Username:    "@chat",
		Language:    db.LanguageUK,
		Institution: institution,
		Department:  "FPM",
		GroupName:   group,
	})
	if err != nil {
		t.Fatalf("register chat %d: %v", chatID, err)
	}
	return chat
}

func TestRegisterDerivesGroupIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 11)

	// FPM is department index 1, so the code is 11*100+1
	first := register(t, service, 11001, institution, db.ChatTypePrivate, "ip-25")
	if first.GroupID != 1101000 {
		t.Fatalf("first group of the department must get index 0, got %d", first.GroupID)
	}
	if first.Role == nil || *first.Role != db.RoleOrdinary || first.Familiarity == nil {
		t.Fatalf("student must start ordinary and unfamiliar: %#v", first)
	}

	// the group name is stored uppercased and a groupmate joins by it
	group, err := client.GetGroup(ctx, 1101000)
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if group.Name != "IP-25" {
		t.Fatalf("unexpected group name: %q", group.Name)
	}

	mate := register(t, service, 11002, institution, db.ChatTypePrivate, "IP-25")
	if mate.GroupID != 1101000 {
		t.Fatalf("groupmate must join the existing group, got %d", mate.GroupID)
	}

	other := register(t, service, 11003, institution, db.ChatTypePrivate, "IS-25")
	if other.GroupID != 1101001 {
		t.Fatalf("new group of the department must get the next id, got %d", other.GroupID)
	}

	// the other department of the same institution scopes its own ids
	fict, err := service.Register(ctx, Registration{
		ChatID: 11004, Type: db.ChatTypePrivate, Username: "@chat", Language: db.LanguageUK,
		Institution: institution, Department: "FICT", GroupName: "IP-25",
	})
	if err != nil {
		t.Fatalf("register in FICT: %v", err)
	}
	if fict.GroupID != 1100000 {
		t.Fatalf("unexpected FICT group id: %d", fict.GroupID)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 12)

	_, err := service.Register(ctx, Registration{
		ChatID: 12001, Institution: institution, Department: "FPM", GroupName: "a\nb",
	})
	if !errors.Is(err, ErrInvalidGroupName) {
		t.Fatalf("expected ErrInvalidGroupName, got %v", err)
	}

	_, err = service.Register(ctx, Registration{
		ChatID: 12002, Institution: institution, Department: "FPM", GroupName: "way-too-long-group-name",
	})
	if !errors.Is(err, ErrGroupNameTooLong) {
		t.Fatalf("expected ErrGroupNameTooLong, got %v", err)
	}

	_, err = service.Register(ctx, Registration{
		ChatID: 12003, Institution: "NO-SUCH-UNI", Department: "FPM", GroupName: "IP-25",
	})
	if !errors.Is(err, ErrUnknownInstitution) {
		t.Fatalf("expected ErrUnknownInstitution, got %v", err)
	}

	_, err = service.Register(ctx, Registration{
		ChatID: 12004, Institution: institution, Department: "FAKE", GroupName: "IP-25",
	})
	if !errors.Is(err, ErrUnknownDepartment) {
		t.Fatalf("expected ErrUnknownDepartment, got %v", err)
	}

	register(t, service, 12005, institution, db.ChatTypePrivate, "IP-25")
	_, err = service.Register(ctx, Registration{
		ChatID: 12005, Institution: institution, Department: "FPM", GroupName: "IP-25",
	})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestClaimLeadership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 13)

	claimer := register(t, service, 13001, institution, db.ChatTypePrivate, "IP-25")

	// no registered group chat yet
	if err := service.ClaimLeadership(ctx, claimer.ID); !errors.Is(err, ErrNoGroupChat) {
		t.Fatalf("expected ErrNoGroupChat, got %v", err)
	}

	register(t, service, -13001, institution, db.ChatTypeSupergroup, "IP-25")

	// still alone in the group
	if err := service.ClaimLeadership(ctx, claimer.ID); !errors.Is(err, ErrNotEnoughGroupmates) {
		t.Fatalf("expected ErrNotEnoughGroupmates, got %v", err)
	}

	register(t, service, 13002, institution, db.ChatTypePrivate, "IP-25")

	if err := service.ClaimLeadership(ctx, claimer.ID); err != nil {
		t.Fatalf("claim leadership: %v", err)
	}
	if err := service.ClaimLeadership(ctx, claimer.ID); !errors.Is(err, ErrAlreadyLeader) {
		t.Fatalf("expected ErrAlreadyLeader, got %v", err)
	}
	if err := service.ClaimLeadership(ctx, 13002); !errors.Is(err, ErrGroupHasLeader) {
		t.Fatalf("expected ErrGroupHasLeader, got %v", err)
	}
}

func TestAdminRatioLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	service.cfg.MaxAdminRatio = 0.5
	institution := seedInstitution(t, client, 14)

	leader := register(t, service, 14001, institution, db.ChatTypePrivate, "IP-25")
	register(t, service, -14001, institution, db.ChatTypeSupergroup, "IP-25")
	mate := register(t, service, 14002, institution, db.ChatTypePrivate, "IP-25")
	second := register(t, service, 14003, institution, db.ChatTypePrivate, "IP-25")

	if err := service.ClaimLeadership(ctx, leader.ID); err != nil {
		t.Fatalf("claim leadership: %v", err)
	}

	// 3 students, limit 0.5: one admin fits, the second does not
	if err := service.PromoteAdmin(ctx, leader.ID, mate.ID); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	if err := service.PromoteAdmin(ctx, leader.ID, second.ID); !errors.Is(err, ErrAdminLimitReached) {
		t.Fatalf("expected ErrAdminLimitReached, got %v", err)
	}

	// ordinary students cannot manage admins
	if err := service.PromoteAdmin(ctx, second.ID, mate.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := service.DemoteAdmin(ctx, leader.ID, mate.ID); err != nil {
		t.Fatalf("demote admin: %v", err)
	}
	if err := service.DemoteAdmin(ctx, leader.ID, mate.ID); !errors.Is(err, ErrNoAdmins) {
		t.Fatalf("expected ErrNoAdmins, got %v", err)
	}
}

func TestResignPassesLeadership(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 15)

	leader := register(t, service, 15001, institution, db.ChatTypePrivate, "IP-25")
	register(t, service, -15001, institution, db.ChatTypeSupergroup, "IP-25")
	successor := register(t, service, 15002, institution, db.ChatTypePrivate, "IP-25")

	if err := service.ClaimLeadership(ctx, leader.ID); err != nil {
		t.Fatalf("claim leadership: %v", err)
	}
	if err := service.Resign(ctx, leader.ID, successor.ID); err != nil {
		t.Fatalf("resign: %v", err)
	}

	newLeader, err := client.GroupLeader(ctx, leader.GroupID)
	if err != nil {
		t.Fatalf("group leader: %v", err)
	}
	if newLeader.ID != successor.ID {
		t.Fatalf("unexpected leader: %d", newLeader.ID)
	}

	former, err := client.GetChat(ctx, leader.ID)
	if err != nil {
		t.Fatalf("get former leader: %v", err)
	}
	if former.EffectiveRole() != db.RoleAdmin {
		t.Fatalf("former leader must stay an admin, got %v", former.EffectiveRole())
	}
}

func TestLeaveLastStudentRemovesGroup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 16)

	student := register(t, service, 16001, institution, db.ChatTypePrivate, "IP-25")
	register(t, service, -16001, institution, db.ChatTypeSupergroup, "IP-25")
	mate := register(t, service, 16002, institution, db.ChatTypePrivate, "IP-25")

	if err := service.Leave(ctx, mate.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := client.GetGroup(ctx, student.GroupID); err != nil {
		t.Fatalf("group must survive while students remain: %v", err)
	}

	if err := service.Leave(ctx, student.ID); err != nil {
		t.Fatalf("last leave: %v", err)
	}
	if _, err := client.GetGroup(ctx, student.GroupID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("group must be removed with the last student, got %v", err)
	}
	if _, err := client.GetChat(ctx, -16001); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("group chat must be removed with the last student, got %v", err)
	}
}

func TestLeaveEvictsRemovedGroupChats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 31)

	student := register(t, service, 31001, institution, db.ChatTypePrivate, "IP-25")
	register(t, service, -31001, institution, db.ChatTypeSupergroup, "IP-25")

	if err := service.Leave(ctx, student.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := client.GetChat(ctx, -31001); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("group chat row must be gone, got %v", err)
	}

	// the cascade-deleted chats must not survive in the cache: both the
	// group chat and the leaver can register again
	register(t, service, -31001, institution, db.ChatTypeSupergroup, "IP-25")
	again := register(t, service, 31001, institution, db.ChatTypePrivate, "IP-25")
	if again.GroupID != student.GroupID {
		t.Fatalf("re-registration must mint the same group id, got %d", again.GroupID)
	}
}

func TestSubmitFeedbackWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 17)

	student := register(t, service, 17001, institution, db.ChatTypePrivate, "IP-25")

	if err := service.SubmitFeedback(ctx, student.ID, "nice"); !errors.Is(err, ErrFeedbackTooEarly) {
		t.Fatalf("expected ErrFeedbackTooEarly, got %v", err)
	}

	service.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	if err := service.SubmitFeedback(ctx, student.ID, "nice"); err != nil {
		t.Fatalf("submit feedback: %v", err)
	}

	got, err := client.GetChat(ctx, student.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Feedback == nil || *got.Feedback != "nice" {
		t.Fatalf("unexpected feedback: %#v", got.Feedback)
	}
}

func TestSetLanguage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 19)

	student := register(t, service, 19001, institution, db.ChatTypePrivate, "IP-25")

	if err := service.SetLanguage(ctx, student.ID, db.LanguageEN); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if err := service.SetLanguage(ctx, 19999, db.LanguageEN); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	got, err := client.GetChat(ctx, student.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Language != db.LanguageEN {
		t.Fatalf("unexpected language: %v", got.Language)
	}
}

func TestMarkFamiliarIsSticky(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, client := newTestService(t)
	institution := seedInstitution(t, client, 18)

	student := register(t, service, 18001, institution, db.ChatTypePrivate, "IP-25")

	if err := service.MarkFamiliar(ctx, student.ID, db.FamiliarTrust); err != nil {
		t.Fatalf("mark familiar: %v", err)
	}
	if err := service.MarkFamiliar(ctx, student.ID, db.FamiliarTrust); err != nil {
		t.Fatalf("mark familiar twice: %v", err)
	}

	got, err := client.GetChat(ctx, student.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.Familiarity == nil || !got.Familiarity.Has(db.FamiliarTrust) {
		t.Fatalf("familiarity flag not persisted: %#v", got.Familiarity)
	}
}
