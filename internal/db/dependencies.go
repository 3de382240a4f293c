package db

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type Client interface {
	Close() error

	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	CreateChat(ctx context.Context, chat *Chat) error
	UpdateChatRole(ctx context.Context, chatID int64, role Role) error
	UpdateChatLanguage(ctx context.Context, chatID int64, language Language) error
	UpdateChatFamiliarity(ctx context.Context, chatID int64, familiarity Familiarity) error
	SetChatFeedback(ctx context.Context, chatID int64, feedback string) error
	DeleteChat(ctx context.Context, chatID int64) error
	DeleteGroupChats(ctx context.Context, groupID int64) error
	GroupStudents(ctx context.Context, groupID int64) ([]Chat, error)
	GroupLeader(ctx context.Context, groupID int64) (*Chat, error)
	FirstGroupChat(ctx context.Context, groupID int64) (*Chat, error)
	CountStudents(ctx context.Context, groupID int64) (int, error)
	CountAdmins(ctx context.Context, groupID int64) (int, error)

	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, groupID int64) (*Group, error)
	DepartmentGroups(ctx context.Context, departmentCode int64) ([]Group, error)
	SetGroupGraduation(ctx context.Context, groupID int64, year int64) error
	SetGroupInfo(ctx context.Context, groupID int64, info *string) error
	SetGroupEvents(ctx context.Context, groupID int64, events *string) error
	GroupsWithEvents(ctx context.Context) ([]Group, error)
	DeleteGroup(ctx context.Context, groupID int64) error
	PurgeGraduated(ctx context.Context, year int64) (groups int64, chats int64, err error)

	CreateInstitution(ctx context.Context, institution *Institution) error
	GetInstitutionByName(ctx context.Context, name string) (*Institution, error)
	ListInstitutions(ctx context.Context) ([]Institution, error)

	LinkECampusAccount(ctx context.Context, account *ECampusAccount) error
	ECampusAccounts(ctx context.Context, chatID int64) ([]ECampusAccount, error)
	AllECampusAccounts(ctx context.Context) ([]ECampusAccount, error)
	UpdateECampusPoints(ctx context.Context, login string, points int64) error
	DeleteECampusAccounts(ctx context.Context, chatID int64) error
}
