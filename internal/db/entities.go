package db

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RegisteredFormat is the timestamp layout of chats.registered.
const RegisteredFormat = "2006.01.02 15:04:05"

type (
	ChatType int64
	Role     int64
	Language int64
)

const (
	ChatTypePrivate ChatType = iota
	ChatTypeGroup
	ChatTypeSupergroup
)

const (
	RoleOrdinary Role = iota
	RoleAdmin
	RoleLeader
)

const (
	LanguageUK Language = iota
	LanguageEN
	LanguageRU
)

func (l Language) Code() string {
	switch l {
	case LanguageUK:
		return "uk"
	case LanguageRU:
		return "ru"
	default:
		return "en"
	}
}

type (
	// Institution is an educational organization. Departments is a free-text
	// newline-separated list, deliberately unnormalized.
	Institution struct {
		ID          int64  `db:"id"`
		Name        string `db:"name"`
		City        string `db:"city"`
		Departments string `db:"departments"`
	}

	// Group is a student cohort. Graduation, Info and Events are nullable:
	// a group freshly created by its first registrant carries only a name.
	Group struct {
		ID         int64   `db:"id"`
		Name       string  `db:"name"`
		Graduation *int64  `db:"graduation"`
		Info       *string `db:"info"`
		Events     *string `db:"events"`
	}

	// Chat is a registered messaging participant, either a student (private
	// chat) or a group chat. Role and Familiarity are set for students only.
	Chat struct {
		ID          int64        `db:"id"`
		Type        ChatType     `db:"type"`
		Username    string       `db:"username"`
		Language    Language     `db:"language"`
		GroupID     int64        `db:"group_id"`
		Role        *Role        `db:"role"`
		Familiarity *Familiarity `db:"familiarity"`
		Feedback    *string      `db:"feedback"`
		Registered  string       `db:"registered"`
	}

	// ECampusAccount links a chat to an external learning-platform login.
	// A chat may hold several accounts, logins are globally unique.
	ECampusAccount struct {
		ChatID   int64  `db:"id"`
		Login    string `db:"login"`
		Password string `db:"password"`
		Points   *int64 `db:"points"`
	}
)

func (c *Chat) IsStudent() bool {
	return c.Type == ChatTypePrivate
}

func (c *Chat) EffectiveRole() Role {
	if c.Role == nil {
		return RoleOrdinary
	}
	return *c.Role
}

// RegisteredAt parses the registration timestamp.
func (c *Chat) RegisteredAt() (time.Time, error) {
	ts, err := time.Parse(RegisteredFormat, c.Registered)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse registered timestamp")
	}
	return ts, nil
}

// Familiarity is a fixed-width flag string tracking which commands a student
// has already seen the full explanation of, one '0'/'1' per flag.
type Familiarity string

type FamiliarityFlag int

const (
	FamiliarCommands FamiliarityFlag = iota
	FamiliarTrust
	FamiliarDistrust
	FamiliarNew
	FamiliarAnswerNotify
	FamiliarSave
	FamiliarDelete
	FamiliarClear
	FamiliarResign
	FamiliarLeave

	familiarityWidth = 10
)

func NewFamiliarity() Familiarity {
	return Familiarity(strings.Repeat("0", familiarityWidth))
}

func (f Familiarity) Has(flag FamiliarityFlag) bool {
	if int(flag) >= len(f) {
		return false
	}
	return f[flag] == '1'
}

func (f Familiarity) With(flag FamiliarityFlag) Familiarity {
	if int(flag) >= len(f) {
		return f
	}
	b := []byte(f)
	b[flag] = '1'
	return Familiarity(b)
}

func (f Familiarity) Value() (driver.Value, error) {
	if len(f) != familiarityWidth {
		return nil, errors.Errorf("familiarity must be %d flags, got %q", familiarityWidth, string(f))
	}
	return string(f), nil
}

func (f *Familiarity) Scan(v interface{}) error {
	switch data := v.(type) {
	case nil:
		return nil
	case string:
		*f = Familiarity(data)
	case []byte:
		*f = Familiarity(data)
	default:
		return fmt.Errorf("cannot scan type %T into Familiarity", v)
	}
	return nil
}
