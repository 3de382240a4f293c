package roster

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groupmate/groupmate/internal/config"
	"github.com/groupmate/groupmate/internal/db"
	"github.com/groupmate/groupmate/internal/infra/reg"
)

// Service owns the registration and role lifecycle of chats and groups.
type Service struct {
	client db.Client
	cfg    config.Roster
	now    func() time.Time
}

func NewService(client db.Client, cfg config.Roster) *Service {
	return &Service{client: client, cfg: cfg, now: time.Now}
}

// Registration is the input of a finished registration dialog. Institution
// and Department name a row of the institutions table; together they scope
// the group id.
type Registration struct {
	ChatID      int64
	Type        db.ChatType
	Username    string
	Language    db.Language
	Institution string
	Department  string
	GroupName   string
}

// Register creates the chat record, and the group record when the chat is
// the first registered one of its group.
func (s *Service) Register(ctx context.Context, in Registration) (*db.Chat, error) {
	if _, err := s.chat(ctx, in.ChatID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, ErrNotRegistered) {
		return nil, err
	}

	if strings.Contains(in.GroupName, "\n") {
		return nil, ErrInvalidGroupName
	}
	if len([]rune(in.GroupName)) > s.cfg.MaxGroupNameLength {
		return nil, ErrGroupNameTooLong
	}
	groupName := strings.ToUpper(in.GroupName)

	departmentCode, err := s.departmentCode(ctx, in.Institution, in.Department)
	if err != nil {
		return nil, err
	}
	groupID, first, err := s.determineGroupID(ctx, departmentCode, groupName)
	if err != nil {
		return nil, err
	}
	if first {
		group := &db.Group{ID: groupID, Name: groupName}
		if err := s.client.CreateGroup(ctx, group); err != nil {
			return nil, err
		}
		reg.Get().SetGroup(group)
	}

	chat := &db.Chat{
		ID:         in.ChatID,
		Type:       in.Type,
		Username:   in.Username,
		Language:   in.Language,
		GroupID:    groupID,
		Registered: s.now().Format(db.RegisteredFormat),
	}
	if chat.IsStudent() {
		role := db.RoleOrdinary
		familiarity := db.NewFamiliarity()
		chat.Role, chat.Familiarity = &role, &familiarity
	}
	if err := s.client.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	reg.Get().SetChat(chat)

	log.WithFields(log.Fields{"chat_id": chat.ID, "group_id": groupID}).Info("chat registers")
	return chat, nil
}

// departmentCode resolves the institution row and the department's position
// in its list. The code is institutionID*100 + department index, two digits
// for the department.
func (s *Service) departmentCode(ctx context.Context, institution, department string) (int64, error) {
	record, err := s.client.GetInstitutionByName(ctx, institution)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, ErrUnknownInstitution
		}
		return 0, err
	}
	for i, name := range strings.Split(record.Departments, "\n") {
		if name == department {
			return record.ID*100 + int64(i), nil
		}
	}
	return 0, ErrUnknownDepartment
}

// determineGroupID picks the existing group id by name within the
// department, or mints the next free one.
func (s *Service) determineGroupID(ctx context.Context, departmentCode int64, groupName string) (int64, bool, error) {
	groups, err := s.client.DepartmentGroups(ctx, departmentCode)
	if err != nil {
		return 0, false, err
	}
	if len(groups) == 0 {
		// the first group of a department has index 0
		return departmentCode * 1000, true, nil
	}
	for _, group := range groups {
		if group.Name == groupName {
			return group.ID, false, nil
		}
	}
	return groups[len(groups)-1].ID + 1, true, nil
}

// ClaimLeadership promotes the claimer once the group has a group chat, no
// leader yet and enough registered groupmates to vouch.
func (s *Service) ClaimLeadership(ctx context.Context, chatID int64) error {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}
	if record.EffectiveRole() == db.RoleLeader {
		return ErrAlreadyLeader
	}

	if _, err := s.client.GroupLeader(ctx, record.GroupID); err == nil {
		return ErrGroupHasLeader
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	if _, err := s.client.FirstGroupChat(ctx, record.GroupID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNoGroupChat
		}
		return err
	}

	students, err := s.client.CountStudents(ctx, record.GroupID)
	if err != nil {
		return err
	}
	if students-1 < s.cfg.MinGroupmatesForLeader {
		return ErrNotEnoughGroupmates
	}

	return s.setRole(ctx, record, db.RoleLeader)
}

// PromoteAdmin makes the target an admin while the admin to students ratio
// allows it.
func (s *Service) PromoteAdmin(ctx context.Context, leaderID, targetID int64) error {
	leader, target, err := s.leaderAndGroupmate(ctx, leaderID, targetID)
	if err != nil {
		return err
	}

	students, err := s.client.CountStudents(ctx, leader.GroupID)
	if err != nil {
		return err
	}
	if students <= 1 {
		return ErrNoGroupmates
	}
	admins, err := s.client.CountAdmins(ctx, leader.GroupID)
	if err != nil {
		return err
	}
	if float64(admins+1)/float64(students) > s.cfg.MaxAdminRatio {
		return ErrAdminLimitReached
	}

	return s.setRole(ctx, target, db.RoleAdmin)
}

func (s *Service) DemoteAdmin(ctx context.Context, leaderID, targetID int64) error {
	leader, target, err := s.leaderAndGroupmate(ctx, leaderID, targetID)
	if err != nil {
		return err
	}

	admins, err := s.client.CountAdmins(ctx, leader.GroupID)
	if err != nil {
		return err
	}
	if admins == 0 || target.EffectiveRole() != db.RoleAdmin {
		return ErrNoAdmins
	}

	return s.setRole(ctx, target, db.RoleOrdinary)
}

// Resign passes leadership to the successor; the former leader stays an
// admin.
func (s *Service) Resign(ctx context.Context, leaderID, successorID int64) error {
	leader, successor, err := s.leaderAndGroupmate(ctx, leaderID, successorID)
	if err != nil {
		return err
	}
	if err := s.setRole(ctx, successor, db.RoleLeader); err != nil {
		return err
	}
	return s.setRole(ctx, leader, db.RoleAdmin)
}

// SubmitFeedback stores the feedback text; accepted only after the chat has
// been registered long enough to know the service.
func (s *Service) SubmitFeedback(ctx context.Context, chatID int64, text string) error {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}
	registered, err := record.RegisteredAt()
	if err != nil {
		return err
	}
	if s.now().Sub(registered) < s.cfg.FeedbackDelay {
		return ErrFeedbackTooEarly
	}
	if err := s.client.SetChatFeedback(ctx, chatID, text); err != nil {
		return err
	}
	feedback := text
	record.Feedback = &feedback
	reg.Get().SetChat(record)
	return nil
}

// SetLanguage switches the chat's reply language.
func (s *Service) SetLanguage(ctx context.Context, chatID int64, language db.Language) error {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.client.UpdateChatLanguage(ctx, chatID, language); err != nil {
		return err
	}
	record.Language = language
	reg.Get().SetChat(record)
	return nil
}

// MarkFamiliar flips one familiarity flag of a student.
func (s *Service) MarkFamiliar(ctx context.Context, chatID int64, flag db.FamiliarityFlag) error {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}
	if record.Familiarity == nil || record.Familiarity.Has(flag) {
		return nil
	}
	familiarity := record.Familiarity.With(flag)
	if err := s.client.UpdateChatFamiliarity(ctx, chatID, familiarity); err != nil {
		return err
	}
	record.Familiarity = &familiarity
	reg.Get().SetChat(record)
	return nil
}

// Leave deletes the chat's data. The last student of a group takes the
// group's chats and the group row with them, the group reference is cleaned
// up explicitly.
func (s *Service) Leave(ctx context.Context, chatID int64) error {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}

	if err := s.client.DeleteECampusAccounts(ctx, chatID); err != nil {
		return err
	}

	last := false
	if record.IsStudent() {
		students, err := s.client.CountStudents(ctx, record.GroupID)
		if err != nil {
			return err
		}
		last = students <= 1
	}

	if last {
		if err := s.client.DeleteGroupChats(ctx, record.GroupID); err != nil {
			return err
		}
		if err := s.client.DeleteGroup(ctx, record.GroupID); err != nil {
			return err
		}
		// the cascade removed the group's other chats too, not just the leaver
		reg.Get().RemoveGroupChats(record.GroupID)
	} else if err := s.client.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	reg.Get().RemoveChat(chatID)

	log.WithFields(log.Fields{"chat_id": chatID, "last": last}).Info("chat leaves")
	return nil
}

func (s *Service) chat(ctx context.Context, chatID int64) (*db.Chat, error) {
	if cached := reg.Get().GetChat(chatID); cached != nil {
		return cached, nil
	}
	record, err := s.client.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	reg.Get().SetChat(record)
	return record, nil
}

func (s *Service) setRole(ctx context.Context, record *db.Chat, role db.Role) error {
	if err := s.client.UpdateChatRole(ctx, record.ID, role); err != nil {
		return err
	}
	record.Role = &role
	reg.Get().SetChat(record)
	return nil
}

func (s *Service) leaderAndGroupmate(ctx context.Context, leaderID, targetID int64) (*db.Chat, *db.Chat, error) {
	leader, err := s.chat(ctx, leaderID)
	if err != nil {
		return nil, nil, err
	}
	if leader.EffectiveRole() != db.RoleLeader {
		return nil, nil, ErrForbidden
	}
	target, err := s.chat(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	if target.GroupID != leader.GroupID || !target.IsStudent() {
		return nil, nil, ErrNotGroupmate
	}
	return leader, target, nil
}
